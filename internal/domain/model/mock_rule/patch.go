package model

// RulePatch 部分更新，nil 字段保持不变
type RulePatch struct {
	Path                 *string               `json:"path,omitempty"`
	Method               *string               `json:"method,omitempty"`
	StatusCode           *int                  `json:"statusCode,omitempty"`
	ContentType          *string               `json:"contentType,omitempty"`
	ResponseBody         *string               `json:"responseBody,omitempty"`
	Headers              *map[string]string    `json:"headers,omitempty"`
	Delay                *int                  `json:"delay,omitempty"`
	ResponseType         *ResponseType         `json:"responseType,omitempty"`
	ConditionalResponses *ConditionalResponses `json:"conditionalResponses,omitempty"`
	ResponseTemplate     *ResponseTemplate     `json:"responseTemplate,omitempty"`
	Status               *RuleStatus           `json:"status,omitempty"`
	Name                 *string               `json:"name,omitempty"`
	Description          *string               `json:"description,omitempty"`
	Tags                 *[]string             `json:"tags,omitempty"`
	GroupID              *string               `json:"groupId,omitempty"`
}

// Apply 把非空字段写入 r
func (p *RulePatch) Apply(r *Rule) {
	if p == nil {
		return
	}
	if p.Path != nil {
		r.Path = *p.Path
	}
	if p.Method != nil {
		r.Method = *p.Method
	}
	if p.StatusCode != nil {
		r.StatusCode = *p.StatusCode
	}
	if p.ContentType != nil {
		r.ContentType = *p.ContentType
	}
	if p.ResponseBody != nil {
		r.ResponseBody = *p.ResponseBody
	}
	if p.Headers != nil {
		r.Headers = cloneStringMap(*p.Headers)
	}
	if p.Delay != nil {
		r.Delay = *p.Delay
	}
	if p.ResponseType != nil {
		r.ResponseType = *p.ResponseType
	}
	if p.ConditionalResponses != nil {
		r.ConditionalResponses = *p.ConditionalResponses
	}
	if p.ResponseTemplate != nil {
		t := *p.ResponseTemplate
		r.ResponseTemplate = &t
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Tags != nil {
		r.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.GroupID != nil {
		r.GroupID = *p.GroupID
	}
}

// IsEmpty 补丁不修改任何字段
func (p *RulePatch) IsEmpty() bool {
	return p == nil || *p == RulePatch{}
}
