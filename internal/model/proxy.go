// Package model defines shared types for the proxy.
package model

import (
	"io"
	"net/http"
)

// OutboundRequest is the request replayed against the target.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// UpstreamResponse is the raw upstream response.
// The caller is responsible for closing Body.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	// TransferEncoding holds the codings net/http strips from Header.
	TransferEncoding []string
	Body             io.ReadCloser
}

// Envelope is the JSON document returned to the client on success.
type Envelope struct {
	Status       EnvelopeStatus `json:"status"`
	Contents     string         `json:"contents"`
	ResponseTime int64          `json:"response_time"`
}

// EnvelopeStatus describes the upstream exchange.
type EnvelopeStatus struct {
	URL      string            `json:"url"`
	HTTPCode int               `json:"http_code"`
	Headers  map[string]string `json:"headers"`
}
