package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

type HTTPRequestInfo struct {
	req       *http.Request
	bodyCache []byte
	params    map[string]string

	jsonOnce sync.Once
	jsonBody any
	jsonErr  error
}

var _ RequestInfo = (*HTTPRequestInfo)(nil)

// NewHTTPRequest 预读请求体并缓存，之后可重复读取
func NewHTTPRequest(r *http.Request) *HTTPRequestInfo {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	return &HTTPRequestInfo{
		req:       r,
		bodyCache: body,
		params:    PathParamsFromContext(r.Context()),
	}
}

func (h *HTTPRequestInfo) GetMethod() string {
	return h.req.Method
}

func (h *HTTPRequestInfo) GetPath() string {
	return h.req.URL.Path
}

func (h *HTTPRequestInfo) GetHeader(key string) (string, bool) {
	values, ok := h.req.Header[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ","), true
}

func (h *HTTPRequestInfo) GetHeaders() map[string]string {
	headers := make(map[string]string, len(h.req.Header))
	for k, v := range h.req.Header {
		headers[k] = strings.Join(v, ",")
	}
	return headers
}

func (h *HTTPRequestInfo) GetQuery(key string) (string, bool) {
	values, ok := h.req.URL.Query()[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h *HTTPRequestInfo) GetRawQuery() string {
	return h.req.URL.RawQuery
}

func (h *HTTPRequestInfo) GetBody() []byte {
	return h.bodyCache
}

func (h *HTTPRequestInfo) GetBodyJSON() (any, error) {
	h.jsonOnce.Do(func() {
		if len(h.bodyCache) == 0 {
			h.jsonErr = fmt.Errorf("empty request body")
			return
		}
		h.jsonErr = json.Unmarshal(h.bodyCache, &h.jsonBody)
		if h.jsonErr != nil {
			h.jsonErr = fmt.Errorf("decode request body as JSON: %w", h.jsonErr)
		}
	})
	return h.jsonBody, h.jsonErr
}

func (h *HTTPRequestInfo) GetPathParam(key string) (string, bool) {
	v, ok := h.params[key]
	return v, ok
}

func (h *HTTPRequestInfo) GetClientIP() string {
	host, _, err := net.SplitHostPort(h.req.RemoteAddr)
	if err != nil {
		return h.req.RemoteAddr
	}
	return host
}

func (h *HTTPRequestInfo) GetUserAgent() string {
	return h.req.UserAgent()
}
