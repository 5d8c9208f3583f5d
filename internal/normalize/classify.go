package normalize

import (
	"strings"

	"reliefboard/internal/models"
)

// TypeRule maps any of its keywords, matched as a case-insensitive substring,
// to a task type.
type TypeRule struct {
	Keywords []string
	Type     models.TaskType
}

// StatusRule is TypeRule's counterpart for statuses.
type StatusRule struct {
	Keywords []string
	Status   models.TaskStatus
}

// DefaultTypeRules returns the keyword groups in tie-break order. The order is
// part of the contract: a text matching several groups resolves to the first.
func DefaultTypeRules() []TypeRule {
	return []TypeRule{
		{Keywords: []string{"清理", "鏟", "cleanup"}, Type: models.TypeCleanup},
		{Keywords: []string{"救援", "rescue"}, Type: models.TypeRescue},
		{Keywords: []string{"物資", "配送", "supply"}, Type: models.TypeSupplyDelivery},
		{Keywords: []string{"醫療", "醫"}, Type: models.TypeMedicalAid},
		{Keywords: []string{"收容", "避難", "shelter"}, Type: models.TypeShelterSupport},
	}
}

func DefaultStatusRules() []StatusRule {
	return []StatusRule{
		{Keywords: []string{"準備", "pending", "審核"}, Status: models.StatusPending},
		{Keywords: []string{"可認領", "available"}, Status: models.StatusAvailable},
		{Keywords: []string{"已認領", "claimed"}, Status: models.StatusClaimed},
		{Keywords: []string{"進行", "in_progress", "進行中"}, Status: models.StatusInProgress},
		{Keywords: []string{"完成", "completed"}, Status: models.StatusCompleted},
		{Keywords: []string{"取消", "cancelled"}, Status: models.StatusCancelled},
	}
}

// ClassifyType resolves free text to a task type: exact enum code, then exact
// display label, then the keyword rules, then cleanup.
func ClassifyType(text string, rules []TypeRule) models.TaskType {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return models.TypeCleanup
	}
	for _, t := range models.TaskTypes {
		if s == string(t) || s == t.Label() {
			return t
		}
	}
	for _, r := range rules {
		if containsAny(s, r.Keywords) {
			return r.Type
		}
	}
	return models.TypeCleanup
}

// ClassifyStatus resolves free text to a status, defaulting to pending.
func ClassifyStatus(text string, rules []StatusRule) models.TaskStatus {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return models.StatusPending
	}
	for _, st := range models.TaskStatuses {
		if s == string(st) || s == st.Label() {
			return st
		}
	}
	for _, r := range rules {
		if containsAny(s, r.Keywords) {
			return r.Status
		}
	}
	return models.StatusPending
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
