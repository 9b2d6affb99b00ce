package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"cors-proxy-go/internal/metrics"
	"cors-proxy-go/internal/model"
	"cors-proxy-go/internal/service"
)

// ProxyPath is the only path served by the proxy.
const ProxyPath = "/get"

// userinfoPattern matches credentials embedded in URLs quoted by transport errors.
var userinfoPattern = regexp.MustCompile(`(://)[^/@\s"]+@`)

// ProxyHandler serves the forwarding endpoint.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle forwards the request to the target named by the url parameter and
// writes the JSON envelope.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	env, err := h.service.Forward(req.Context(), req)
	if err != nil {
		return h.reject(c, err)
	}

	data, err := encodeEnvelope(env)
	if err != nil {
		return h.reject(c, err)
	}

	c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, "*")
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// RejectRoute answers requests for any path other than ProxyPath.
func (h *ProxyHandler) RejectRoute(c echo.Context) error {
	return h.reject(c, service.ErrRoutingMismatch)
}

// HandleError is the public server's echo.HTTPErrorHandler. Every error that
// escapes a handler or middleware gets the same empty 400: router 404/405
// become routing mismatches, pipeline errors keep their kind and anything
// else is tagged as rejected.
func (h *ProxyHandler) HandleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	_ = h.reject(c, rejectionCause(err))
}

func rejectionCause(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && (he.Code == http.StatusNotFound || he.Code == http.StatusMethodNotAllowed) {
		return service.ErrRoutingMismatch
	}
	var se *service.Error
	if errors.As(err, &se) {
		return err
	}
	return &service.Error{Kind: service.KindRejected, Err: err}
}

// reject logs the failure kind and writes the uniform 400 with no body.
func (h *ProxyHandler) reject(c echo.Context, err error) error {
	kind := service.KindOf(err)

	h.logger.Warn("proxy request rejected",
		"kind", kind.String(),
		"err", sanitizeError(err),
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
	)

	if h.metrics != nil {
		h.metrics.FailuresTotal.WithLabelValues(kind.String()).Inc()
	}

	return c.NoContent(http.StatusBadRequest)
}

func encodeEnvelope(env *model.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// sanitizeError redacts URL credentials from error messages.
func sanitizeError(err error) string {
	return userinfoPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]@")
}
