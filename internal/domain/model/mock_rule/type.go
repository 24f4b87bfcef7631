package model

// RuleStatus 规则生命周期状态
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "ACTIVE"
	RuleStatusInactive RuleStatus = "INACTIVE"
	RuleStatusDraft    RuleStatus = "DRAFT"
	RuleStatusArchived RuleStatus = "ARCHIVED"
)

func (s RuleStatus) IsValid() bool {
	switch s {
	case RuleStatusActive, RuleStatusInactive, RuleStatusDraft, RuleStatusArchived:
		return true
	default:
		return false
	}
}

func (s RuleStatus) String() string {
	return string(s)
}

// ResponseType 决定规则如何生成响应
type ResponseType string

const (
	ResponseTypeStatic      ResponseType = "STATIC"
	ResponseTypeConditional ResponseType = "CONDITIONAL"
	// ResponseTypeSequential 保留值，按 STATIC 处理
	ResponseTypeSequential ResponseType = "SEQUENTIAL"
	ResponseTypeTemplate   ResponseType = "TEMPLATE"
)

// HTTP 方法
const (
	MethodGet     = "GET"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodDelete  = "DELETE"
	MethodPatch   = "PATCH"
	MethodHead    = "HEAD"
	MethodOptions = "OPTIONS"
	MethodAll     = "ALL"
)

var supportedMethods = map[string]struct{}{
	MethodGet: {}, MethodPost: {}, MethodPut: {}, MethodDelete: {},
	MethodPatch: {}, MethodHead: {}, MethodOptions: {}, MethodAll: {},
}

// IsSupportedMethod m 需已转大写
func IsSupportedMethod(m string) bool {
	_, ok := supportedMethods[m]
	return ok
}

// 条件来源
const (
	ConditionHeader    = "header"
	ConditionQuery     = "query"
	ConditionBody      = "body"
	ConditionPathParam = "path_param"
)

// 操作符
const (
	OpEquals    = "equals"
	OpContains  = "contains"
	OpRegex     = "regex"
	OpExists    = "exists"
	OpNotExists = "not_exists"
)

// 模板变量类型
const (
	VariableStatic    = "static"
	VariableDynamic   = "dynamic"
	VariableGenerated = "generated"
)

// 生成器类型
const (
	GeneratorFaker     = "faker"
	GeneratorCustom    = "custom"
	GeneratorSequence  = "sequence"
	GeneratorTimestamp = "timestamp"
	GeneratorUUID      = "uuid"
	GeneratorUserAgent = "user_agent"
	GeneratorIP        = "ip"
	GeneratorMethod    = "method"
	GeneratorPath      = "path"
)

// HistoryAction 历史记录的操作类型
type HistoryAction string

const (
	HistoryActionCreate HistoryAction = "create"
	HistoryActionUpdate HistoryAction = "update"
	HistoryActionDelete HistoryAction = "delete"
)
