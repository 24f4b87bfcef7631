package model

import "time"

// RequestLog 一次 mock 调用的不可变记录
type RequestLog struct {
	ID             uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID         string            `gorm:"type:varchar(36);index" json:"ruleId"`
	Method         string            `gorm:"type:varchar(10)" json:"method"`
	Path           string            `gorm:"type:varchar(255)" json:"path"`
	Query          string            `gorm:"type:text" json:"query"`
	Headers        map[string]string `gorm:"serializer:json" json:"headers"`
	Body           string            `gorm:"type:text" json:"body"`
	ResponseStatus int               `json:"responseStatus"`
	ResponseTime   int64             `json:"responseTime"` // 毫秒
	Timestamp      time.Time         `gorm:"index" json:"timestamp"`
	UserAgent      string            `gorm:"type:varchar(255)" json:"userAgent,omitempty"`
	IP             string            `gorm:"type:varchar(64)" json:"ip,omitempty"`
	UserID         string            `gorm:"type:varchar(64)" json:"userId,omitempty"`
	Error          string            `gorm:"type:text" json:"error,omitempty"`
}

func (RequestLog) TableName() string { return "fake_api_request_logs" }

// LivenessStatus 进程内的探活结果，每轮覆盖
type LivenessStatus struct {
	RuleID        string    `json:"ruleId"`
	IsLive        bool      `json:"isLive"`
	LastChecked   time.Time `json:"lastChecked"`
	FailureReason string    `json:"failureReason,omitempty"`
}
