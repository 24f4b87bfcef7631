package model

import (
	"encoding/json"
	"reflect"
	"time"
)

// RuleHistoryEntry 规则审计记录，只追加不删除
type RuleHistoryEntry struct {
	ID        uint64                 `gorm:"primaryKey;autoIncrement" json:"id"`
	RuleID    string                 `gorm:"type:varchar(36);not null;uniqueIndex:idx_rule_version,priority:1" json:"ruleId"`
	Version   int                    `gorm:"not null;uniqueIndex:idx_rule_version,priority:2" json:"version"`
	ChangedBy string                 `gorm:"type:varchar(64)" json:"changedBy"`
	Changes   map[string]FieldChange `gorm:"serializer:json" json:"changes"`
	Action    HistoryAction          `gorm:"type:varchar(10);not null" json:"action"`
	Comment   string                 `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

func (RuleHistoryEntry) TableName() string { return "fake_api_rule_history" }

type FieldChange struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

// bookkeeping fields that never count as a user change
var volatileFields = map[string]struct{}{
	"version": {}, "createdAt": {}, "updatedAt": {}, "lastUsed": {}, "usageCount": {},
}

// DiffRules 比较两个版本的规则，old 为 nil 时视为新建
func DiffRules(old, updated *Rule) map[string]FieldChange {
	before := ruleFields(old)
	after := ruleFields(updated)

	changes := make(map[string]FieldChange)
	for k, nv := range after {
		if _, skip := volatileFields[k]; skip {
			continue
		}
		ov, ok := before[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			changes[k] = FieldChange{Old: ov, New: nv}
		}
	}
	for k, ov := range before {
		if _, skip := volatileFields[k]; skip {
			continue
		}
		if _, ok := after[k]; !ok {
			changes[k] = FieldChange{Old: ov}
		}
	}
	return changes
}

func ruleFields(r *Rule) map[string]any {
	out := map[string]any{}
	if r == nil {
		return out
	}
	b, err := json.Marshal(r)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(b, &out)
	return out
}

// NewHistoryEntry 构建审计记录；version 为该操作之后的版本号
func NewHistoryEntry(action HistoryAction, old, updated *Rule, actor, comment string) *RuleHistoryEntry {
	subject := updated
	if subject == nil {
		subject = old
	}
	version := subject.Version
	var changes map[string]FieldChange
	switch action {
	case HistoryActionDelete:
		// the deletion occupies the next version slot
		version = old.Version + 1
		changes = map[string]FieldChange{}
	default:
		changes = DiffRules(old, updated)
	}
	return &RuleHistoryEntry{
		RuleID:    subject.ID,
		Version:   version,
		ChangedBy: actor,
		Changes:   changes,
		Action:    action,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
}
