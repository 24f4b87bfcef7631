package services

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"
	"fake_api_server/utils"

	"github.com/sirupsen/logrus"
)

// ProbeHeader 探活请求带此头，不记日志不计数
const ProbeHeader = "X-Fake-Api-Probe"

// MockHandlerFactory 为每个规则快照构建 http.Handler
type MockHandlerFactory struct {
	synthesizer ResponseSynthesizerIface
	recorder    RequestRecorderIface
	metrics     *Metrics
}

func NewMockHandlerFactory(synthesizer ResponseSynthesizerIface, recorder RequestRecorderIface, metrics *Metrics) *MockHandlerFactory {
	return &MockHandlerFactory{synthesizer: synthesizer, recorder: recorder, metrics: metrics}
}

func (f *MockHandlerFactory) NewHandler(rule *model.Rule) (http.Handler, error) {
	if rule == nil {
		return nil, fmt.Errorf("nil rule")
	}
	return &mockHandler{
		rule:        rule,
		mediaType:   model.MediaType(rule.ContentType),
		synthesizer: f.synthesizer,
		recorder:    f.recorder,
		metrics:     f.metrics,
	}, nil
}

// mockHandler 绑定单个规则版本，构建后不可变
type mockHandler struct {
	rule        *model.Rule
	mediaType   string
	synthesizer ResponseSynthesizerIface
	recorder    RequestRecorderIface
	metrics     *Metrics
}

type dispatchResult struct {
	status int
	err    error
}

func (h *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := model.NewHTTPRequest(r)
	probe := r.Header.Get(ProbeHeader) != ""

	res := h.dispatch(w, r, req)

	elapsed := time.Since(start)
	if h.metrics != nil {
		h.metrics.DispatchTotal.WithLabelValues(r.Method, strconv.Itoa(res.status)).Inc()
		h.metrics.DispatchDuration.WithLabelValues(r.Method).Observe(elapsed.Seconds())
	}
	if probe || h.recorder == nil {
		return
	}

	entry := &model.RequestLog{
		RuleID:         h.rule.ID,
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		Headers:        req.GetHeaders(),
		Body:           string(req.GetBody()),
		ResponseStatus: res.status,
		ResponseTime:   elapsed.Milliseconds(),
		Timestamp:      start.UTC(),
		UserAgent:      req.GetUserAgent(),
		IP:             req.GetClientIP(),
		UserID:         h.rule.Owner,
	}
	if res.err != nil {
		entry.Error = res.err.Error()
	}
	h.recorder.Record(entry)
}

func (h *mockHandler) dispatch(w http.ResponseWriter, r *http.Request, req model.RequestInfo) (res dispatchResult) {
	log := utils.GetLogger().WithFields(logrus.Fields{
		"rule_id": h.rule.ID,
		"method":  r.Method,
		"path":    r.URL.Path,
	})

	written := false
	defer func() {
		if p := recover(); p != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("panic while serving mock: %v", p)
			res = dispatchResult{status: http.StatusInternalServerError, err: fmt.Errorf("panic: %v", p)}
			if !written {
				writeInternalError(w)
			}
		}
	}()

	if err := h.checkContentType(r); err != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnsupportedMediaType)
		io.WriteString(w, err.Error())
		return dispatchResult{status: http.StatusUnsupportedMediaType, err: err}
	}

	resp, err := h.synthesizer.Synthesize(h.rule, req)
	if err != nil {
		log.WithError(err).Warn("failed to synthesize response")
		writeInternalError(w)
		return dispatchResult{status: http.StatusInternalServerError, err: err}
	}

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			// 客户端已断开，不再写响应
			return dispatchResult{status: 499, err: r.Context().Err()}
		}
	}

	header := w.Header()
	for k, v := range resp.Headers {
		header.Set(k, v)
	}
	header.Set("Content-Type", resp.ContentType)
	written = true
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		io.WriteString(w, resp.Body)
	}
	return dispatchResult{status: resp.StatusCode}
}

// checkContentType 只检查带 body 的方法，且请求声明了 Content-Type
func (h *mockHandler) checkContentType(r *http.Request) error {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return nil
	}
	if model.MediaType(ct) != h.mediaType {
		return &model.UnsupportedMediaTypeError{Expected: h.rule.ContentType, Actual: ct}
	}
	return nil
}

func writeInternalError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, "Internal Server Error")
}
