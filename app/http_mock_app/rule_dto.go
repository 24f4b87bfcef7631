package http_mock_app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	model "fake_api_server/internal/domain/model/mock_rule"

	"github.com/go-playground/validator/v10"
)

// CreateRuleRequest POST /rules 请求体
type CreateRuleRequest struct {
	Path                 string                     `json:"path" validate:"required"`
	Method               string                     `json:"method" validate:"required"`
	StatusCode           int                        `json:"statusCode" validate:"required"`
	ContentType          string                     `json:"contentType" validate:"required"`
	ResponseBody         string                     `json:"responseBody"`
	Headers              map[string]string          `json:"headers,omitempty"`
	Delay                int                        `json:"delay" validate:"min=0"`
	ResponseType         model.ResponseType         `json:"responseType,omitempty"`
	ConditionalResponses model.ConditionalResponses `json:"conditionalResponses,omitempty"`
	ResponseTemplate     *model.ResponseTemplate    `json:"responseTemplate,omitempty"`
	Status               model.RuleStatus           `json:"status,omitempty"`
	Name                 string                     `json:"name,omitempty"`
	Description          string                     `json:"description,omitempty"`
	Tags                 []string                   `json:"tags,omitempty"`
	GroupID              string                     `json:"groupId,omitempty"`
}

// UpdateRuleRequest PUT/PATCH /rules/{id}，只修改出现的字段
type UpdateRuleRequest struct {
	model.RulePatch
	Comment string `json:"comment,omitempty" validate:"max=500"`
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

// Validate 只检查请求形状，业务规则由领域层校验
func (req *CreateRuleRequest) Validate() error {
	return validateStruct(req)
}

func (req *UpdateRuleRequest) Validate() error {
	if req.RulePatch.IsEmpty() {
		return model.NewValidationError("update must change at least one field")
	}
	return validateStruct(req)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return model.NewValidationError(err.Error())
	}
	fields := make([]string, 0, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return &model.ValidationError{Fields: fields, Message: strings.Join(msgs, "; ")}
}

// ToRule DTO -> 领域对象
func (req *CreateRuleRequest) ToRule() *model.Rule {
	return &model.Rule{
		Path:                 req.Path,
		Method:               req.Method,
		StatusCode:           req.StatusCode,
		ContentType:          req.ContentType,
		ResponseBody:         req.ResponseBody,
		Headers:              req.Headers,
		Delay:                req.Delay,
		ResponseType:         req.ResponseType,
		ConditionalResponses: req.ConditionalResponses,
		ResponseTemplate:     req.ResponseTemplate,
		Status:               req.Status,
		Name:                 req.Name,
		Description:          req.Description,
		Tags:                 req.Tags,
		GroupID:              req.GroupID,
	}
}

// RouteResponse GET /routes 的一项
type RouteResponse struct {
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	RuleID      string    `json:"ruleId"`
	Version     int       `json:"version"`
	InstalledAt time.Time `json:"installedAt"`
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}
