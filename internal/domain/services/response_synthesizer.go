package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	mathrand "math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"

	"github.com/google/uuid"
)

// SynthesizedResponse 一次请求最终要写回的内容
type SynthesizedResponse struct {
	StatusCode  int
	ContentType string
	Body        string
	Headers     map[string]string
	Delay       time.Duration
}

// ResponseSynthesizerIface 根据规则和请求生成响应
type ResponseSynthesizerIface interface {
	Synthesize(rule *model.Rule, req model.RequestInfo) (*SynthesizedResponse, error)
}

type ResponseSynthesizer struct {
	sequences *SequenceStore
	now       func() time.Time
}

var _ ResponseSynthesizerIface = (*ResponseSynthesizer)(nil)

func NewResponseSynthesizer(sequences *SequenceStore) *ResponseSynthesizer {
	return &ResponseSynthesizer{sequences: sequences, now: time.Now}
}

// {{ name }}
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Synthesize 生成响应；出错时返回 *model.SynthesisError
func (s *ResponseSynthesizer) Synthesize(rule *model.Rule, req model.RequestInfo) (*SynthesizedResponse, error) {
	resp := &SynthesizedResponse{
		StatusCode:  rule.StatusCode,
		ContentType: rule.ContentType,
		Body:        rule.ResponseBody,
		Headers:     rule.Headers,
		Delay:       time.Duration(rule.Delay) * time.Millisecond,
	}

	switch rule.ResponseType {
	case model.ResponseTypeConditional:
		for _, cr := range rule.ConditionalResponses {
			if model.Evaluate(req, cr.Conditions) {
				resp = &SynthesizedResponse{
					StatusCode:  cr.StatusCode,
					ContentType: cr.ContentType,
					Body:        cr.ResponseBody,
					Headers:     cr.Headers,
					Delay:       time.Duration(cr.Delay) * time.Millisecond,
				}
				break
			}
		}
	case model.ResponseTypeTemplate:
		body, err := s.renderTemplate(rule, req)
		if err != nil {
			return nil, &model.SynthesisError{RuleID: rule.ID, Err: err}
		}
		resp.Body = body
	}

	body, err := FormatBody(resp.Body, resp.ContentType)
	if err != nil {
		return nil, &model.SynthesisError{RuleID: rule.ID, Err: err}
	}
	resp.Body = body
	return resp, nil
}

func (s *ResponseSynthesizer) renderTemplate(rule *model.Rule, req model.RequestInfo) (string, error) {
	tmpl := rule.ResponseTemplate
	if tmpl == nil {
		return rule.ResponseBody, nil
	}

	values := make(map[string]string, len(tmpl.Variables))
	for _, v := range tmpl.Variables {
		value, err := s.variableValue(rule, tmpl, v, req)
		if err != nil {
			return "", fmt.Errorf("variable %s: %w", v.Name, err)
		}
		values[v.Name] = value
	}

	return placeholderPattern.ReplaceAllStringFunc(rule.ResponseBody, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := values[name]; ok {
			return v
		}
		// 未声明的占位符原样保留
		return m
	}), nil
}

func (s *ResponseSynthesizer) variableValue(rule *model.Rule, tmpl *model.ResponseTemplate, v model.TemplateVariable, req model.RequestInfo) (string, error) {
	switch v.Type {
	case model.VariableStatic:
		return v.Value, nil
	case model.VariableDynamic:
		return s.dynamicValue(v.Generator, req)
	case model.VariableGenerated:
		gen, ok := tmpl.Generator(v.Generator)
		if !ok {
			return "", fmt.Errorf("generator %q is not declared", v.Generator)
		}
		return s.generate(rule.ID, gen)
	default:
		return "", fmt.Errorf("unknown variable type %q", v.Type)
	}
}

func (s *ResponseSynthesizer) dynamicValue(generator string, req model.RequestInfo) (string, error) {
	switch generator {
	case model.GeneratorTimestamp:
		return s.now().UTC().Format(time.RFC3339), nil
	case model.GeneratorUUID:
		return uuid.NewString(), nil
	case model.GeneratorUserAgent:
		return req.GetUserAgent(), nil
	case model.GeneratorIP:
		return req.GetClientIP(), nil
	case model.GeneratorMethod:
		return req.GetMethod(), nil
	case model.GeneratorPath:
		return req.GetPath(), nil
	default:
		return "", fmt.Errorf("unknown dynamic generator %q", generator)
	}
}

func (s *ResponseSynthesizer) generate(ruleID string, gen *model.TemplateGenerator) (string, error) {
	switch gen.Type {
	case model.GeneratorFaker:
		return fakeValue(configString(gen.Config, "kind"))
	case model.GeneratorCustom:
		if values, ok := gen.Config["values"].([]any); ok && len(values) > 0 {
			return fmt.Sprint(values[mathrand.IntN(len(values))]), nil
		}
		if v, ok := gen.Config["value"]; ok {
			return fmt.Sprint(v), nil
		}
		return "", fmt.Errorf("custom generator %q needs config.values or config.value", gen.Name)
	case model.GeneratorSequence:
		start := int64(1)
		if raw, ok := gen.Config["start"]; ok {
			n, err := toInt64(raw)
			if err != nil {
				return "", fmt.Errorf("sequence generator %q: %w", gen.Name, err)
			}
			start = n
		}
		return strconv.FormatInt(s.sequences.Next(ruleID+"/"+gen.Name, start), 10), nil
	case model.GeneratorTimestamp:
		return formatTimestamp(s.now(), configString(gen.Config, "format")), nil
	case model.GeneratorUUID:
		return uuid.NewString(), nil
	default:
		return "", fmt.Errorf("unknown generator type %q", gen.Type)
	}
}

func configString(cfg map[string]any, key string) string {
	if v, ok := cfg[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("start must be a number, got %T", v)
	}
}

func formatTimestamp(t time.Time, format string) string {
	t = t.UTC()
	switch strings.ToLower(format) {
	case "", "rfc3339":
		return t.Format(time.RFC3339)
	case "iso":
		return t.Format("2006-01-02T15:04:05.000Z07:00")
	case "unix":
		return strconv.FormatInt(t.Unix(), 10)
	case "unix_ms":
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.Format(format)
	}
}

// FormatBody 按媒体类型包装响应体
func FormatBody(body, contentType string) (string, error) {
	switch model.MediaType(contentType) {
	case "application/json":
		if json.Valid([]byte(body)) {
			return body, nil
		}
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(map[string]string{"message": body}); err != nil {
			return "", fmt.Errorf("encode json body: %w", err)
		}
		return strings.TrimRight(buf.String(), "\n"), nil
	case "text/html":
		lower := strings.ToLower(strings.TrimSpace(body))
		if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
			return body, nil
		}
		return "<!DOCTYPE html><html><head><title>Message</title></head><body><p>" + body + "</p></body></html>", nil
	case "application/xml":
		if strings.HasPrefix(strings.TrimSpace(body), "<?xml") {
			return body, nil
		}
		return `<?xml version="1.0" encoding="UTF-8"?><message>` + body + `</message>`, nil
	default:
		return body, nil
	}
}
