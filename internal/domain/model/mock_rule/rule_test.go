package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() *Rule {
	return &Rule{
		ID:           "r1",
		Owner:        "u1",
		Path:         "/test/admin",
		Method:       "get",
		StatusCode:   200,
		ContentType:  "application/json",
		ResponseBody: "Hello, Administrator!",
	}
}

func TestRuleNormalize(t *testing.T) {
	r := validRule()
	r.Path = "test/admin/"
	r.ResponseType = "conditional"
	r.Normalize()

	assert.Equal(t, "GET", r.Method)
	assert.Equal(t, "/test/admin", r.Path)
	assert.Equal(t, ResponseTypeConditional, r.ResponseType)
	assert.Equal(t, RuleStatusActive, r.Status)

	r2 := validRule()
	r2.Normalize()
	assert.Equal(t, ResponseTypeStatic, r2.ResponseType)
	assert.Equal(t, "GET:/test/admin", r2.RouteKey())
	assert.Equal(t, "u1|/test/admin|GET", r2.OwnerKey())
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Rule)
		field  string
	}{
		{name: "valid", mutate: func(r *Rule) {}},
		{name: "status code too low", mutate: func(r *Rule) { r.StatusCode = 99 }, field: "statusCode"},
		{name: "status code too high", mutate: func(r *Rule) { r.StatusCode = 600 }, field: "statusCode"},
		{name: "missing content type", mutate: func(r *Rule) { r.ContentType = "" }, field: "contentType"},
		{name: "malformed content type", mutate: func(r *Rule) { r.ContentType = "json" }, field: "contentType"},
		{name: "unsupported method", mutate: func(r *Rule) { r.Method = "TRACE" }, field: "method"},
		{name: "negative delay", mutate: func(r *Rule) { r.Delay = -1 }, field: "delay"},
		{name: "missing owner", mutate: func(r *Rule) { r.Owner = "" }, field: "owner"},
		{name: "query in path", mutate: func(r *Rule) { r.Path = "/a?b=1" }, field: "path"},
		{
			name:   "conditional without responses",
			mutate: func(r *Rule) { r.ResponseType = ResponseTypeConditional },
			field:  "conditionalResponses",
		},
		{
			name: "conditional with bad operator",
			mutate: func(r *Rule) {
				r.ResponseType = ResponseTypeConditional
				r.ConditionalResponses = ConditionalResponses{{
					Conditions:  []RuleCondition{{Type: ConditionHeader, Key: "X", Operator: "like"}},
					StatusCode:  200,
					ContentType: "text/plain",
				}}
			},
			field: "conditionalResponses[0].conditions[0].operator",
		},
		{
			name:   "template missing",
			mutate: func(r *Rule) { r.ResponseType = ResponseTypeTemplate },
			field:  "responseTemplate",
		},
		{
			name: "template with undeclared generator",
			mutate: func(r *Rule) {
				r.ResponseType = ResponseTypeTemplate
				r.ResponseTemplate = &ResponseTemplate{Variables: []TemplateVariable{
					{Name: "n", Type: VariableGenerated, Generator: "missing"},
				}}
			},
			field: "responseTemplate.variables[0].generator",
		},
		{
			name: "template with unknown dynamic generator",
			mutate: func(r *Rule) {
				r.ResponseType = ResponseTypeTemplate
				r.ResponseTemplate = &ResponseTemplate{Variables: []TemplateVariable{
					{Name: "n", Type: VariableDynamic, Generator: "weather"},
				}}
			},
			field: "responseTemplate.variables[0].generator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			r.Normalize()
			tt.mutate(r)
			err := r.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestRuleClone(t *testing.T) {
	r := validRule()
	r.Headers = map[string]string{"X-A": "1"}
	r.ConditionalResponses = ConditionalResponses{{
		Conditions: []RuleCondition{{Type: ConditionHeader, Key: "X", Operator: OpExists}},
		Headers:    map[string]string{"X-B": "2"},
	}}
	r.ResponseTemplate = &ResponseTemplate{Generators: []TemplateGenerator{
		{Name: "g", Type: GeneratorCustom, Config: map[string]any{"value": "v"}},
	}}

	c := r.Clone()
	c.Headers["X-A"] = "changed"
	c.ConditionalResponses[0].Headers["X-B"] = "changed"
	c.ConditionalResponses[0].Conditions[0].Key = "Y"
	c.ResponseTemplate.Generators[0].Config["value"] = "changed"

	assert.Equal(t, "1", r.Headers["X-A"])
	assert.Equal(t, "2", r.ConditionalResponses[0].Headers["X-B"])
	assert.Equal(t, "X", r.ConditionalResponses[0].Conditions[0].Key)
	assert.Equal(t, "v", r.ResponseTemplate.Generators[0].Config["value"])
}

func TestConditionalResponsesScanValue(t *testing.T) {
	in := ConditionalResponses{{
		Conditions:   []RuleCondition{{Type: ConditionQuery, Key: "a", Operator: OpEquals, Value: "1"}},
		StatusCode:   201,
		ContentType:  "text/plain",
		ResponseBody: "ok",
	}}
	v, err := in.Value()
	require.NoError(t, err)

	var out ConditionalResponses
	require.NoError(t, out.Scan([]byte(v.(string))))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}

func TestHistoryEntries(t *testing.T) {
	created := validRule()
	created.Normalize()
	created.Version = 1

	entry := NewHistoryEntry(HistoryActionCreate, nil, created, "u1", "")
	assert.Equal(t, 1, entry.Version)
	assert.Equal(t, HistoryActionCreate, entry.Action)
	assert.Contains(t, entry.Changes, "responseBody")
	assert.NotContains(t, entry.Changes, "version")

	updated := created.Clone()
	updated.ResponseBody = "changed"
	updated.Version = 2
	entry = NewHistoryEntry(HistoryActionUpdate, created, updated, "u1", "tweak")
	assert.Equal(t, 2, entry.Version)
	assert.Equal(t, "tweak", entry.Comment)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, FieldChange{Old: "Hello, Administrator!", New: "changed"}, entry.Changes["responseBody"])

	entry = NewHistoryEntry(HistoryActionDelete, updated, nil, "u1", "")
	assert.Equal(t, 3, entry.Version)
	assert.Equal(t, "r1", entry.RuleID)
	assert.Empty(t, entry.Changes)
}
