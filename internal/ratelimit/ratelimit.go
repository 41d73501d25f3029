package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

// Jitter sleeps a random interval in [min, max] measured from the previous
// call. It backs the cooling delay between requests to one retailer.
type Jitter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
}

func NewJitter(minDelay, maxDelay time.Duration) *Jitter {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Jitter{
		minDelay: minDelay,
		maxDelay: maxDelay,
	}
}

func (j *Jitter) Wait(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	delay := j.calculateDelay()
	if elapsed := time.Since(j.lastAction); elapsed < delay {
		if err := Sleep(ctx, delay-elapsed); err != nil {
			return err
		}
	}

	j.lastAction = time.Now()
	return nil
}

// Pause sleeps a full random interval in [min, max] regardless of when the
// previous call returned. Use it after work of unknown duration, such as a
// page load, where Wait would already consider the delay spent.
func (j *Jitter) Pause(ctx context.Context) error {
	j.mu.Lock()
	delay := j.calculateDelay()
	j.mu.Unlock()

	if err := Sleep(ctx, delay); err != nil {
		return err
	}

	j.mu.Lock()
	j.lastAction = time.Now()
	j.mu.Unlock()
	return nil
}

func (j *Jitter) SetDelay(min, max time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if max < min {
		max = min
	}
	j.minDelay = min
	j.maxDelay = max
}

func (j *Jitter) Delays() (time.Duration, time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.minDelay, j.maxDelay
}

func (j *Jitter) calculateDelay() time.Duration {
	return Between(j.minDelay, j.maxDelay)
}

// Adaptive widens the jitter window after repeated errors and narrows it
// again after a streak of successes.
type Adaptive struct {
	*Jitter
	baseMin       time.Duration
	baseMax       time.Duration
	errorCount    int
	successCount  int
	maxErrorCount int
	backoffFactor float64
}

func NewAdaptive(minDelay, maxDelay time.Duration) *Adaptive {
	j := NewJitter(minDelay, maxDelay)
	return &Adaptive{
		Jitter:        j,
		baseMin:       j.minDelay,
		baseMax:       j.maxDelay,
		maxErrorCount: 3,
		backoffFactor: 1.5,
	}
}

func (a *Adaptive) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	a.errorCount = 0

	if a.successCount > 5 {
		newMin := time.Duration(float64(a.minDelay) * 0.9)
		newMax := time.Duration(float64(a.maxDelay) * 0.9)
		if newMin < a.baseMin {
			newMin = a.baseMin
		}
		if newMax < a.baseMax {
			newMax = a.baseMax
		}
		a.minDelay = newMin
		a.maxDelay = newMax
		a.successCount = 0
	}
}

func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.errorCount++
	a.successCount = 0

	if a.errorCount >= a.maxErrorCount {
		newMin := time.Duration(float64(a.minDelay) * a.backoffFactor)
		newMax := time.Duration(float64(a.maxDelay) * a.backoffFactor)

		if newMin > 60*time.Second {
			newMin = 60 * time.Second
		}
		if newMax > 120*time.Second {
			newMax = 120 * time.Second
		}

		a.minDelay = newMin
		a.maxDelay = newMax
		a.errorCount = 0
	}
}

// Reset restores the configured window.
func (a *Adaptive) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.minDelay = a.baseMin
	a.maxDelay = a.baseMax
	a.errorCount = 0
	a.successCount = 0
}

// Between returns a random duration in [min, max].
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
