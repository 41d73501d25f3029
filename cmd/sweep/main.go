package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maltedev/retail-price-sweeper/internal/aggregate"
	"github.com/maltedev/retail-price-sweeper/internal/app"
	"github.com/maltedev/retail-price-sweeper/internal/catalog"
	"github.com/maltedev/retail-price-sweeper/internal/config"
	"github.com/maltedev/retail-price-sweeper/internal/logging"
	"github.com/maltedev/retail-price-sweeper/internal/pipeline"
)

type options struct {
	retailers []string
	all       bool
	products  []string
	xlsx      bool
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		retailer = fs.String("retailer", "", "Comma-separated retailer keys (e.g. magalu,gazin)")
		all      = fs.Bool("all", false, "Sweep every retailer in column order")
		products = fs.String("products", "", "Comma-separated product codes (default: whole catalog)")
		xlsx     = fs.Bool("xlsx", false, "Also write the consolidated spreadsheet to EXPORT_DIR")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{
		retailers: splitList(*retailer),
		all:       *all,
		products:  splitList(*products),
		xlsx:      *xlsx,
	}
	if opts.all == (len(opts.retailers) > 0) {
		return options{}, errors.New("exactly one of -retailer or -all is required")
	}
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 1
	}

	logger := logging.New(cfg.Logging, stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Bootstrap(cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}

	var keys []string
	if !opts.all {
		keys = opts.retailers
	}
	rets, err := env.Registry.Resolve(keys)
	if err != nil {
		logger.Error("failed to resolve retailers", "error", err)
		return 1
	}

	entries := catalog.Select(env.Catalog, opts.products)
	if len(entries) == 0 {
		logger.Error("no catalog entries selected", "products", opts.products)
		return 1
	}

	started := time.Now()
	collectors := make([]*aggregate.Collector, 0, len(rets))
	for _, ret := range rets {
		logger.Info("sweeping retailer", "retailer", ret.Key, "products", len(entries))

		collector, err := env.Runner.Sweep(ctx, ret, entries, nil)
		if err != nil {
			if pipeline.IsCancellation(err) {
				logger.Warn("sweep cancelled", "retailer", ret.Key)
				return 1
			}
			logger.Error("sweep failed", "retailer", ret.Key, "error", err)
			return 1
		}
		collectors = append(collectors, collector)
		logger.Info("retailer done", "retailer", ret.Key, "counts", collector.Counts())
	}

	if opts.xlsx {
		path, err := writeSpreadsheet(cfg.Paths.Exports, rets, collectors, entries, time.Since(started))
		if err != nil {
			logger.Error("failed to export spreadsheet", "error", err)
			return 1
		}
		logger.Info("spreadsheet written", "path", path)
	}

	var out any
	if len(collectors) == 1 {
		out = collectors[0].Reduce()
	} else {
		out = byRetailer(collectors)
	}
	if err := aggregate.WriteJSON(stdout, out); err != nil {
		logger.Error("failed to write results", "error", err)
		return 1
	}
	return 0
}

// byRetailer encodes reduced maps keyed by retailer in sweep order.
type byRetailer []*aggregate.Collector

func (b byRetailer) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Retailer())
		if err != nil {
			return nil, err
		}
		val, err := c.Reduce().MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
