package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"cors-proxy-go/internal/model"
)

// dispatch sends out upstream and converts the response into an Envelope.
// start marks the beginning of the pipeline and anchors response_time.
func (s *ProxyService) dispatch(ctx context.Context, start time.Time, out *model.OutboundRequest) (*model.Envelope, error) {
	resp, err := s.upstream.Do(ctx, out)
	if err != nil {
		return nil, classify(ctx, KindUpstreamUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	headers, err := envelopeHeaders(resp.Header, resp.TransferEncoding)
	if err != nil {
		return nil, newError(KindInvalidHeaderEncoding, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, KindUpstreamUnreachable, fmt.Errorf("read upstream body: %w", err))
	}
	if !utf8.Valid(body) {
		return nil, newError(KindInvalidBodyEncoding, errors.New("upstream body is not valid UTF-8"))
	}

	return &model.Envelope{
		Status: model.EnvelopeStatus{
			URL:      out.URL,
			HTTPCode: resp.StatusCode,
			Headers:  headers,
		},
		Contents:     string(body),
		ResponseTime: time.Since(start).Milliseconds(),
	}, nil
}

// envelopeHeaders flattens h into lower-case names. For repeated headers the
// last value wins. Every value must be text; the first one that is not fails
// the whole conversion. te restores the Transfer-Encoding header that
// net/http moves out of h.
func envelopeHeaders(h http.Header, te []string) (map[string]string, error) {
	out := make(map[string]string, len(h)+1)
	if len(te) > 0 {
		v := strings.Join(te, ", ")
		if !isHeaderText(v) {
			return nil, errors.New("header \"Transfer-Encoding\" has a non-text value")
		}
		out["transfer-encoding"] = v
	}
	for name, vals := range h {
		for _, v := range vals {
			if !isHeaderText(v) {
				return nil, fmt.Errorf("header %q has a non-text value", name)
			}
			out[strings.ToLower(name)] = v
		}
	}
	return out, nil
}

// isHeaderText reports whether v consists only of visible ASCII, space and tab.
func isHeaderText(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b == '\t' {
			continue
		}
		if b < 0x20 || b >= 0x7f {
			return false
		}
	}
	return true
}

// classify tags err with fallback unless ctx has run out of time, in which
// case the failure is a timeout regardless of how it surfaced.
func classify(ctx context.Context, fallback Kind, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindRequestTimeout, err)
	}
	return newError(fallback, err)
}
