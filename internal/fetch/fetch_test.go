package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/retail-price-sweeper/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooksBlocked(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected bool
	}{
		{"regular page", `<html><h1>Air Fryer Britânia</h1></html>`, false},
		{"captcha", `<html><form action="/errors/validateCaptcha"></form></html>`, true},
		{"casas bahia error", `<html><p>Ops! Algo deu errado</p></html>`, true},
		{"access denied", `<title>Access Denied</title>`, true},
		{"amazon robot check", `<html><head><title>Amazon.com.br</title></head><body><input id="captchacharacters"></body></html>`, true},
		{"page embedding recaptcha", `<html><head><title>Air Fryer Britânia BFR11PG | Magalu</title>
<script src="https://www.google.com/recaptcha/api.js"></script>
<script>window.captchaEnabled = true; // access denied handler</script></head>
<body><h1>Air Fryer Britânia BFR11PG</h1><span class="price">R$ 399,90</span>
<div class="g-recaptcha" data-sitekey="abc"></div></body></html>`, false},
		{"block phrase only inside a script", `<html><body><h1>Produto</h1><script>var msg = "Ops! Algo deu errado";</script></body></html>`, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LooksBlocked(tt.html))
		})
	}
}

func TestCheckPage(t *testing.T) {
	assert.NoError(t, CheckPage(&Page{Status: 200, HTML: "<html></html>"}))
	assert.ErrorIs(t, CheckPage(&Page{Status: 404}), ErrHTTPStatus)
	assert.ErrorIs(t, CheckPage(&Page{Status: 200, HTML: "<title>Robot Check</title>"}), ErrBlocked)
	assert.NoError(t, CheckPage(&Page{
		URL:    "https://shop.test/p",
		Status: 200,
		HTML:   `<html><head><script src="https://www.google.com/recaptcha/api.js"></script></head><body><h1>Produto</h1></body></html>`,
	}))
}

func TestPageBaseURL(t *testing.T) {
	assert.Equal(t, "https://a.test/x", (&Page{URL: "https://a.test/x"}).BaseURL())
	assert.Equal(t, "https://a.test/y", (&Page{URL: "https://a.test/x", FinalURL: "https://a.test/y"}).BaseURL())
}

func TestHTTPSessionFetch(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			gotUA = r.Header.Get("User-Agent")
			gotLang = r.Header.Get("Accept-Language")
			w.Write([]byte(`<html><body><h1>Produto</h1></body></html>`))
		case "/blocked":
			w.Write([]byte(`<html><head><title>Robot Check</title></head><body>Please solve the captcha</body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewHTTPSession(HTTPOptions{
		Identity: Identity{UserAgent: "test-agent/1.0"},
		Timeout:  5 * time.Second,
		Limiter:  ratelimit.NewHostLimiter(0),
	}, nil)
	defer s.Close()

	ctx := context.Background()

	page, err := s.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, 200, page.Status)
	assert.Contains(t, page.HTML, "<h1>Produto</h1>")
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Contains(t, gotLang, "pt-BR")

	// revisiting the same URL is allowed
	_, err = s.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)

	_, err = s.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrHTTPStatus)

	_, err = s.Fetch(ctx, srv.URL+"/blocked")
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestHTTPSessionClosedAndCancelled(t *testing.T) {
	s := NewHTTPSession(HTTPOptions{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fetch(ctx, "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	_, err = s.Fetch(context.Background(), "http://127.0.0.1:1/")
	assert.Error(t, err)
}
