package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Rule 规则聚合根（核心领域对象）
type Rule struct {
	ID     string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Owner  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_owner_path_method,priority:1" json:"owner" validate:"required,max=64"`
	Path   string `gorm:"type:varchar(255);not null;uniqueIndex:idx_owner_path_method,priority:2" json:"path" validate:"required,startswith=/,max=255"`
	Method string `gorm:"type:varchar(10);not null;uniqueIndex:idx_owner_path_method,priority:3" json:"method" validate:"required,oneof=GET POST PUT DELETE PATCH HEAD OPTIONS ALL"`

	StatusCode   int               `gorm:"not null" json:"statusCode" validate:"min=100,max=599"`
	ContentType  string            `gorm:"type:varchar(100);not null" json:"contentType" validate:"required,max=100"`
	ResponseBody string            `gorm:"type:text" json:"responseBody"`
	Headers      map[string]string `gorm:"serializer:json" json:"headers,omitempty"`
	Delay        int               `gorm:"default:0" json:"delay" validate:"min=0,max=300000"` // 毫秒

	ResponseType         ResponseType         `gorm:"type:varchar(20);not null" json:"responseType" validate:"oneof=STATIC CONDITIONAL SEQUENTIAL TEMPLATE"`
	ConditionalResponses ConditionalResponses `gorm:"type:json" json:"conditionalResponses,omitempty" validate:"omitempty,dive"`
	ResponseTemplate     *ResponseTemplate    `gorm:"serializer:json" json:"responseTemplate,omitempty" validate:"omitempty"`

	Status      RuleStatus `gorm:"type:varchar(20);index" json:"status" validate:"oneof=ACTIVE INACTIVE DRAFT ARCHIVED"`
	Name        string     `gorm:"type:varchar(100)" json:"name" validate:"max=100"`
	Description string     `gorm:"type:text" json:"description"`
	Tags        []string   `gorm:"serializer:json" json:"tags,omitempty"`
	GroupID     string     `gorm:"type:varchar(64);index" json:"groupId,omitempty"`
	Version     int        `gorm:"not null;default:1" json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
	UsageCount  int64      `gorm:"not null;default:0" json:"usageCount"`
}

func (Rule) TableName() string { return "fake_api_rules" }

// ConditionalResponse 条件命中时整体替换的响应
type ConditionalResponse struct {
	Conditions   []RuleCondition   `json:"conditions" validate:"required,min=1,dive"`
	StatusCode   int               `json:"statusCode" validate:"min=100,max=599"`
	ContentType  string            `json:"contentType" validate:"required"`
	ResponseBody string            `json:"responseBody"`
	Headers      map[string]string `json:"headers,omitempty"`
	Delay        int               `json:"delay,omitempty" validate:"min=0,max=300000"`
}

// ConditionalResponses 以 JSON 列存储
type ConditionalResponses []ConditionalResponse

func (c *ConditionalResponses) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for conditional responses", value)
	}
	if len(data) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(data, c)
}

func (c ConditionalResponses) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// ResponseTemplate 模板变量和生成器
type ResponseTemplate struct {
	Variables  []TemplateVariable  `json:"variables" validate:"dive"`
	Generators []TemplateGenerator `json:"generators,omitempty" validate:"dive"`
}

type TemplateVariable struct {
	Name      string `json:"name" validate:"required,max=64"`
	Type      string `json:"type" validate:"required,oneof=static dynamic generated"`
	Value     string `json:"value,omitempty"`
	Generator string `json:"generator,omitempty"`
}

type TemplateGenerator struct {
	Name   string         `json:"name" validate:"required,max=64"`
	Type   string         `json:"type" validate:"required,oneof=faker custom sequence timestamp uuid"`
	Config map[string]any `json:"config,omitempty"`
}

// Generator 按名称查找生成器
func (t *ResponseTemplate) Generator(name string) (*TemplateGenerator, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Generators {
		if t.Generators[i].Name == name {
			return &t.Generators[i], true
		}
	}
	return nil, false
}

// RouteKey 路由表的规范 key
func (r *Rule) RouteKey() string {
	return RouteKey(r.Method, r.Path)
}

// OwnerKey 存储唯一性约束的规范 key
func (r *Rule) OwnerKey() string {
	return OwnerRouteKey(r.Owner, r.Path, r.Method)
}

func (r *Rule) IsActive() bool {
	return r.Status == RuleStatusActive
}

// Normalize 统一大小写和默认值，创建和更新前调用
func (r *Rule) Normalize() {
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	r.Path = NormalizeRoutePath(r.Path)
	r.ContentType = strings.TrimSpace(r.ContentType)
	if r.ResponseType == "" {
		r.ResponseType = ResponseTypeStatic
	}
	r.ResponseType = ResponseType(strings.ToUpper(string(r.ResponseType)))
	if r.Status == "" {
		r.Status = RuleStatusActive
	}
	r.Status = RuleStatus(strings.ToUpper(string(r.Status)))
}

// Clone 深拷贝，路由表中的处理器只持有快照
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = cloneStringMap(r.Headers)
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	if r.LastUsed != nil {
		t := *r.LastUsed
		c.LastUsed = &t
	}
	if r.ConditionalResponses != nil {
		c.ConditionalResponses = make(ConditionalResponses, len(r.ConditionalResponses))
		for i, cr := range r.ConditionalResponses {
			cr.Conditions = append([]RuleCondition(nil), cr.Conditions...)
			cr.Headers = cloneStringMap(cr.Headers)
			c.ConditionalResponses[i] = cr
		}
	}
	if r.ResponseTemplate != nil {
		t := &ResponseTemplate{
			Variables:  append([]TemplateVariable(nil), r.ResponseTemplate.Variables...),
			Generators: make([]TemplateGenerator, len(r.ResponseTemplate.Generators)),
		}
		for i, g := range r.ResponseTemplate.Generators {
			cfg := make(map[string]any, len(g.Config))
			for k, v := range g.Config {
				cfg[k] = v
			}
			g.Config = cfg
			t.Generators[i] = g
		}
		c.ResponseTemplate = t
	}
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate 校验规则；返回 *ValidationError
func (r *Rule) Validate() error {
	if err := validate.Struct(r); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return toValidationError(ve)
		}
		return NewValidationError(err.Error())
	}

	if _, _, err := mime.ParseMediaType(r.ContentType); err != nil {
		return NewValidationError("contentType is not a valid media type", "contentType")
	}
	if strings.ContainsAny(r.Path, "?# \t") {
		return NewValidationError("path must not contain a query, fragment or whitespace", "path")
	}

	switch r.ResponseType {
	case ResponseTypeConditional:
		if len(r.ConditionalResponses) == 0 {
			return NewValidationError("CONDITIONAL rules need at least one conditional response", "conditionalResponses")
		}
		for i, cr := range r.ConditionalResponses {
			if _, _, err := mime.ParseMediaType(cr.ContentType); err != nil {
				return NewValidationError("contentType is not a valid media type",
					fmt.Sprintf("conditionalResponses[%d].contentType", i))
			}
		}
	case ResponseTypeTemplate:
		if r.ResponseTemplate == nil {
			return NewValidationError("TEMPLATE rules need a responseTemplate", "responseTemplate")
		}
		if err := r.ResponseTemplate.validateReferences(); err != nil {
			return err
		}
	}
	return nil
}

func (t *ResponseTemplate) validateReferences() error {
	for i, v := range t.Variables {
		field := fmt.Sprintf("responseTemplate.variables[%d].generator", i)
		switch v.Type {
		case VariableDynamic:
			if !isDynamicGenerator(v.Generator) {
				return NewValidationError("unknown dynamic generator "+v.Generator, field)
			}
		case VariableGenerated:
			if _, ok := t.Generator(v.Generator); !ok {
				return NewValidationError("generator "+v.Generator+" is not declared", field)
			}
		}
	}
	return nil
}

func isDynamicGenerator(name string) bool {
	switch name {
	case GeneratorTimestamp, GeneratorUUID, GeneratorUserAgent, GeneratorIP, GeneratorMethod, GeneratorPath:
		return true
	}
	return false
}

func toValidationError(ve validator.ValidationErrors) *ValidationError {
	fields := make([]string, 0, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", ns, fe.Tag()))
	}
	return &ValidationError{Fields: fields, Message: strings.Join(msgs, "; ")}
}
