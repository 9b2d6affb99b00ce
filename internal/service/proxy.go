// Package service implements the request-forwarding pipeline: translation of
// the inbound request, dispatch to the target, and envelope construction.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"cors-proxy-go/internal/client"
	"cors-proxy-go/internal/config"
	"cors-proxy-go/internal/model"
)

// Upstream issues outbound requests. Implementations must be safe for
// concurrent use.
type Upstream interface {
	Do(ctx context.Context, out *model.OutboundRequest) (*model.UpstreamResponse, error)
}

// ProxyService runs the translate/dispatch pipeline under a fixed time budget.
type ProxyService struct {
	upstream Upstream
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProxyService creates a ProxyService backed by the shared upstream client.
func NewProxyService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return newProxyService(c, cfg.Proxy.Timeout(), logger)
}

func newProxyService(u Upstream, timeout time.Duration, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		upstream: u,
		timeout:  timeout,
		logger:   logger.With("component", "proxy_service"),
	}
}

type result struct {
	env *model.Envelope
	err error
}

// Forward translates req, dispatches it and returns the envelope. The whole
// pipeline races a timer; when the timer wins the in-flight upstream call is
// abandoned and an error of KindRequestTimeout is returned. Every error
// returned is a *Error.
func (s *ProxyService) Forward(ctx context.Context, req *http.Request) (*model.Envelope, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// done is buffered so an abandoned goroutine can still send and exit.
	// Translate may keep reading req.Body after Forward returns; net/http
	// serializes that read with its own close of the body, so a late read
	// just fails and the pipeline stops before dispatch.
	done := make(chan result, 1)
	go func() {
		out, err := Translate(req)
		if err != nil {
			done <- result{err: err}
			return
		}

		s.logger.Debug("forwarding request",
			"method", out.Method,
			"target", out.URL,
		)

		env, err := s.dispatch(ctx, start, out)
		done <- result{env: env, err: err}
	}()

	select {
	case r := <-done:
		return r.env, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindRequestTimeout, ctx.Err())
		}
		return nil, newError(KindUnknown, ctx.Err())
	}
}
