package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openhouselabs/dealdesk/service/metrics"
)

// ErrTemplateUnavailable is returned when the template cannot be fetched
// remotely and no local fallback path exists. There is no valid document
// without a template, so this aborts the whole pipeline.
var ErrTemplateUnavailable = errors.New("contract template unavailable")

// TemplateLoader fetches the fixed PDF template bytes. It tries the remote
// object-store URL first, then each local filesystem fallback path in order.
// The fallbacks account for the differing working directories of our
// deployment environments.
type TemplateLoader struct {
	url        string
	fallbacks  []string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewTemplateLoader creates a template loader. If httpClient is nil a client
// with a 30 second timeout is used.
func NewTemplateLoader(url string, fallbacks []string, httpClient *http.Client, logger *slog.Logger) *TemplateLoader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &TemplateLoader{
		url:        url,
		fallbacks:  fallbacks,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithMetrics attaches a metrics collector to the loader.
func (l *TemplateLoader) WithMetrics(m *metrics.Metrics) *TemplateLoader {
	l.metrics = m
	return l
}

// Load returns the raw template bytes. Each failed attempt is logged and
// swallowed; only when every attempt is exhausted does Load return
// ErrTemplateUnavailable.
func (l *TemplateLoader) Load(ctx context.Context) ([]byte, error) {
	if l.url != "" {
		data, err := l.fetchRemote(ctx)
		l.metrics.ObserveTemplateFetch("remote", err == nil)
		if err == nil {
			l.logger.Debug("template fetched from remote store", "url", l.url, "bytes", len(data))
			return data, nil
		}
		l.logger.Warn("remote template fetch failed, trying local fallbacks", "url", l.url, "error", err)
	}

	for _, path := range l.fallbacks {
		data, err := os.ReadFile(path)
		l.metrics.ObserveTemplateFetch("local", err == nil)
		if err == nil {
			l.logger.Debug("template loaded from local fallback", "path", path, "bytes", len(data))
			return data, nil
		}
		l.logger.Warn("local template fallback failed", "path", path, "error", err)
	}

	return nil, fmt.Errorf("%w: remote fetch and %d local fallback(s) exhausted", ErrTemplateUnavailable, len(l.fallbacks))
}

func (l *TemplateLoader) fetchRemote(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty template body")
	}
	return data, nil
}
