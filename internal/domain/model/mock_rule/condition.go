package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PaesslerAG/jsonpath"
)

// RuleCondition 条件响应的单个匹配条件
type RuleCondition struct {
	Type          string `json:"type" validate:"required,oneof=header query body path_param"`
	Key           string `json:"key"`
	Operator      string `json:"operator" validate:"required,oneof=equals contains regex exists not_exists"`
	Value         string `json:"value,omitempty"`
	CaseSensitive bool   `json:"caseSensitive,omitempty"`
}

// Evaluate 所有条件同时满足时返回 true，空条件集恒为 true
func Evaluate(req RequestInfo, conditions []RuleCondition) bool {
	for i := range conditions {
		if !conditions[i].Matches(req) {
			return false
		}
	}
	return true
}

// Matches 判断单个条件
func (c *RuleCondition) Matches(req RequestInfo) bool {
	value, present := c.extract(req)

	switch c.Operator {
	case OpNotExists:
		return !present
	case OpExists:
		return present
	}
	if !present {
		return false
	}

	switch c.Operator {
	case OpEquals:
		if c.CaseSensitive {
			return value == c.Value
		}
		return strings.EqualFold(value, c.Value)
	case OpContains:
		if c.CaseSensitive {
			return strings.Contains(value, c.Value)
		}
		return strings.Contains(strings.ToLower(value), strings.ToLower(c.Value))
	case OpRegex:
		re, err := compilePattern(c.Value, c.CaseSensitive)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	default:
		return false
	}
}

func (c *RuleCondition) extract(req RequestInfo) (string, bool) {
	switch c.Type {
	case ConditionHeader:
		return req.GetHeader(c.Key)
	case ConditionQuery:
		return req.GetQuery(c.Key)
	case ConditionPathParam:
		return req.GetPathParam(c.Key)
	case ConditionBody:
		if strings.HasPrefix(c.Key, "$") {
			return lookupJSONPath(req, c.Key)
		}
		body := req.GetBody()
		if len(body) == 0 {
			return "", false
		}
		return string(body), true
	default:
		return "", false
	}
}

func lookupJSONPath(req RequestInfo, path string) (string, bool) {
	doc, err := req.GetBodyJSON()
	if err != nil {
		return "", false
	}
	result, err := jsonpath.Get(path, doc)
	if err != nil || result == nil {
		return "", false
	}

	switch v := result.(type) {
	case string:
		return v, true
	case bool, float64, int, int64:
		return fmt.Sprint(v), true
	case []any:
		if len(v) == 0 {
			return "", false
		}
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// 编译后的正则缓存，key 带大小写标记
var patternCache sync.Map

type cachedPattern struct {
	re  *regexp.Regexp
	err error
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	if v, ok := patternCache.Load(expr); ok {
		cp := v.(cachedPattern)
		return cp.re, cp.err
	}
	re, err := regexp.Compile(expr)
	patternCache.Store(expr, cachedPattern{re: re, err: err})
	return re, err
}
