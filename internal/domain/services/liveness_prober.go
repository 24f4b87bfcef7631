package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"fake_api_server/internal/domain/iface"
	model "fake_api_server/internal/domain/model/mock_rule"
	configs "fake_api_server/internal/infra/config"
	"fake_api_server/internal/infra/repo"
	"fake_api_server/utils"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
)

// LivenessProber 定期向自身发请求，确认每条规则按声明返回
//
// 与规则编辑并发，读到旧版本时结果最终会被下一轮覆盖。
type LivenessProber struct {
	ruleRepo    repo.RuleRepositoryIface
	synth       ResponseSynthesizerIface
	client      *http.Client
	baseURL     string
	interval    time.Duration
	concurrency int
	metrics     *Metrics

	mu       sync.RWMutex
	statuses map[string]model.LivenessStatus
}

var _ iface.LivenessService = (*LivenessProber)(nil)

func NewLivenessProber(c *configs.AppConfig, ruleRepo repo.RuleRepositoryIface, synth ResponseSynthesizerIface, metrics *Metrics) *LivenessProber {
	lc := c.LivenessConfig
	return &LivenessProber{
		ruleRepo:    ruleRepo,
		synth:       synth,
		client:      &http.Client{Timeout: lc.Timeout},
		baseURL:     strings.TrimRight(lc.BaseURL, "/"),
		interval:    lc.Interval,
		concurrency: lc.Concurrency,
		metrics:     metrics,
		statuses:    map[string]model.LivenessStatus{},
	}
}

// Run 阻塞直到 ctx 取消
func (p *LivenessProber) Run(ctx context.Context) {
	log := utils.GetLogger()
	log.WithFields(logrus.Fields{"interval": p.interval, "base_url": p.baseURL}).Info("liveness prober started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("liveness prober stopped")
			return
		case <-ticker.C:
			if err := p.ProbeAll(ctx); err != nil {
				log.WithError(err).Warn("liveness cycle failed")
			}
		}
	}
}

// ProbeAll 探测所有已持久化的规则
func (p *LivenessProber) ProbeAll(ctx context.Context) error {
	rules, err := p.ruleRepo.ListAllRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	pool, err := ants.NewPool(p.concurrency)
	if err != nil {
		return fmt.Errorf("failed to create probe pool: %w", err)
	}
	defer pool.Release()

	seen := make(map[string]struct{}, len(rules))
	var wg sync.WaitGroup
	for _, rule := range rules {
		rule := rule
		seen[rule.ID] = struct{}{}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			p.store(p.probeSafe(ctx, rule))
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			p.store(p.failed(rule.ID, fmt.Sprintf("probe not scheduled: %v", err)))
		}
	}
	wg.Wait()

	// 已删除规则的结果不再保留
	p.mu.Lock()
	for id := range p.statuses {
		if _, ok := seen[id]; !ok {
			delete(p.statuses, id)
		}
	}
	p.mu.Unlock()
	return nil
}

func (p *LivenessProber) probeSafe(ctx context.Context, rule *model.Rule) (status model.LivenessStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = p.failed(rule.ID, fmt.Sprintf("probe panicked: %v", r))
		}
	}()
	return p.probe(ctx, rule)
}

func (p *LivenessProber) probe(ctx context.Context, rule *model.Rule) model.LivenessStatus {
	if !rule.IsActive() {
		return p.failed(rule.ID, fmt.Sprintf("rule status %s is not routable", rule.Status))
	}

	method := rule.Method
	if method == model.MethodAll {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+model.ProbePath(rule.Path), nil)
	if err != nil {
		return p.failed(rule.ID, err.Error())
	}
	req.Header.Set(ProbeHeader, "1")
	req.Header.Set("User-Agent", livenessUserAgent)
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("Content-Type", rule.ContentType)
	}

	expected, err := p.expectedResponse(rule, req)
	if err != nil {
		return p.failed(rule.ID, err.Error())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failed(rule.ID, err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return p.failed(rule.ID, fmt.Sprintf("read body: %v", err))
	}

	if resp.StatusCode != expected.StatusCode {
		return p.failed(rule.ID, fmt.Sprintf("expected status %d, got %d", expected.StatusCode, resp.StatusCode))
	}
	if got := model.MediaType(resp.Header.Get("Content-Type")); got != model.MediaType(expected.ContentType) {
		return p.failed(rule.ID, fmt.Sprintf("expected content type %s, got %s", expected.ContentType, got))
	}
	// 模板每次渲染结果不同，只比较状态码和类型
	if rule.ResponseType != model.ResponseTypeTemplate && method != http.MethodHead && string(body) != expected.Body {
		return p.failed(rule.ID, "response body does not match the rule")
	}

	return model.LivenessStatus{RuleID: rule.ID, IsLive: true, LastChecked: time.Now().UTC()}
}

const livenessUserAgent = "fake-api-server-liveness"

// expectedResponse 条件规则用与探活请求等价的请求选出分支，其余规则直接取默认响应
func (p *LivenessProber) expectedResponse(rule *model.Rule, req *http.Request) (*SynthesizedResponse, error) {
	if rule.ResponseType != model.ResponseTypeConditional || p.synth == nil {
		body, err := FormatBody(rule.ResponseBody, rule.ContentType)
		if err != nil {
			return nil, err
		}
		return &SynthesizedResponse{StatusCode: rule.StatusCode, ContentType: rule.ContentType, Body: body}, nil
	}

	params := map[string]string{}
	routed := model.SplitPath(model.ProbePath(rule.Path))
	for i, seg := range model.SplitPath(rule.Path) {
		if name, ok := model.ParamName(seg); ok {
			params[name] = routed[i]
		}
	}
	mirror := req.Clone(model.WithPathParams(req.Context(), params))
	return p.synth.Synthesize(rule, model.NewHTTPRequest(mirror))
}

func (p *LivenessProber) failed(ruleID, reason string) model.LivenessStatus {
	if p.metrics != nil {
		p.metrics.LivenessFailures.Inc()
	}
	return model.LivenessStatus{RuleID: ruleID, IsLive: false, LastChecked: time.Now().UTC(), FailureReason: reason}
}

func (p *LivenessProber) store(s model.LivenessStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[s.RuleID] = s
}

func (p *LivenessProber) Status(ruleID string) (model.LivenessStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.statuses[ruleID]
	return s, ok
}

func (p *LivenessProber) Statuses() []model.LivenessStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.LivenessStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}
