package service

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"cors-proxy-go/internal/model"
)

// TargetParam is the query parameter carrying the target URL.
const TargetParam = "url"

// forwardableRequestHeaders are the only request headers forwarded upstream.
var forwardableRequestHeaders = []string{
	"Authorization",
	"Content-Type",
	"User-Agent",
	"Accept",
}

// Translate builds the outbound request for req. It reads the full inbound
// body and performs no other side effects.
func Translate(req *http.Request) (*model.OutboundRequest, error) {
	target, ok := targetURL(req.URL.RawQuery)
	if !ok {
		return nil, ErrMissingTarget
	}

	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, newError(KindUnknown, fmt.Errorf("read inbound body: %w", err))
		}
		body = b
	}

	return &model.OutboundRequest{
		Method: req.Method,
		URL:    target,
		Header: filterRequestHeaders(req.Header),
		Body:   body,
	}, nil
}

// targetURL returns the last "url" value in rawQuery.
func targetURL(rawQuery string) (string, bool) {
	// ParseQuery still returns the pairs it could decode alongside an error.
	q, _ := url.ParseQuery(rawQuery)
	vals, ok := q[TargetParam]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}

func filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[key] = append([]string(nil), vals...)
		}
	}
	return dst
}
