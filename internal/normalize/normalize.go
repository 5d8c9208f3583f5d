// Package normalize is the only path from an untrusted models.RawTask to a
// models.Task. It never fails: unknown or malformed input degrades to
// defaults, so a miscategorized task is possible and silent.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"reliefboard/internal/models"
)

const defaultApprovalStatus = "pending"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalizer holds the classification tables. The zero value is not usable;
// build one with New.
type Normalizer struct {
	TypeRules   []TypeRule
	StatusRules []StatusRule

	// TitleFallback classifies the title when the type field is empty.
	TitleFallback bool

	Now    func() time.Time
	Logger *zap.Logger
}

func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		TypeRules:   DefaultTypeRules(),
		StatusRules: DefaultStatusRules(),
		Now:         time.Now,
		Logger:      logger,
	}
}

// Normalize maps one wire record to a fully populated Task.
func (n *Normalizer) Normalize(raw models.RawTask) models.Task {
	typeText := stringOf(raw.Type)
	n.Logger.Debug("[normalize][type]", zap.Any("raw_type", raw.Type))
	if typeText == "" && n.TitleFallback {
		typeText = stringOf(raw.Title)
	}

	status := ClassifyStatus(stringOf(raw.Status), n.StatusRules)
	now := n.Now().UTC()

	t := models.Task{
		ID:                     idOf(raw.ID),
		Title:                  stringOf(raw.Title),
		Description:            stringOf(raw.Description),
		Type:                   ClassifyType(typeText, n.TypeRules),
		Status:                 status,
		WorkLocation:           workLocation(raw),
		Weight:                 count(raw.Weight),
		RequiredNumberOfPeople: count(raw.RequiredNumberOfPeople),
		MaximumNumberOfPeople:  count(raw.MaximumNumberOfPeople),
		ClaimedCount:           count(raw.ClaimedCount),
		DangerLevel:            dangerLevel(firstPresent(raw.DangerLevel, raw.PriorityLevel)),
		RequiredSkills:         stringsOf(raw.RequiredSkills),
		ContactNumber:          stringOf(raw.ContactNumber),
		CreatedAt:              timeOr(raw.CreatedAt, now),
		UpdatedAt:              timeOr(raw.UpdatedAt, now),
		StartAt:                optionalTime(raw.StartAt),
		Deadline:               optionalTime(raw.Deadline),
		CreatorID:              idOf(raw.CreatorID),
		CreatorName:            stringOf(raw.CreatorName),
		CreatorRole:            stringOf(raw.CreatorRole),
		ApprovalStatus:         stringOf(raw.ApprovalStatus),
		ApprovedBy:             idOf(raw.ApprovedBy),
		ApprovedAt:             optionalTime(raw.ApprovedAt),
		ApproverName:           stringOf(raw.ApproverName),
		CanClaim:               status == models.StatusAvailable,
		CanEdit:                false, // no edit policy exists upstream yet
	}
	if t.ApprovalStatus == "" {
		t.ApprovalStatus = defaultApprovalStatus
	}
	return t
}

// NormalizeAll keeps backend order.
func (n *Normalizer) NormalizeAll(raws []models.RawTask) []models.Task {
	out := make([]models.Task, 0, len(raws))
	for _, r := range raws {
		out = append(out, n.Normalize(r))
	}
	return out
}

func workLocation(raw models.RawTask) string {
	if s := stringOf(raw.WorkLocation); s != "" {
		return s
	}
	if s := stringOf(raw.RegistrationLocation); s != "" {
		return s
	}
	if loc, ok := raw.LocationData.(map[string]any); ok {
		return stringOf(loc["address"])
	}
	return ""
}

// firstPresent returns the first non-nil value; a missing field decodes as nil.
func firstPresent(vs ...any) any {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func stringOf(v any) string {
	s, _ := v.(string)
	return s
}

// idOf accepts string or numeric ids.
func idOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func stringsOf(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// number returns v when it is a finite JSON number.
func number(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func count(v any) int {
	f, ok := number(v)
	if !ok || f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func dangerLevel(v any) int {
	f, ok := number(v)
	if !ok {
		return models.MinDangerLevel
	}
	switch {
	case f < models.MinDangerLevel:
		return models.MinDangerLevel
	case f > models.MaxDangerLevel:
		return models.MaxDangerLevel
	}
	return int(f)
}

func parseTime(v any) (time.Time, bool) {
	s := strings.TrimSpace(stringOf(v))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func timeOr(v any, fallback time.Time) time.Time {
	if t, ok := parseTime(v); ok {
		return t
	}
	return fallback
}

func optionalTime(v any) *time.Time {
	if t, ok := parseTime(v); ok {
		return &t
	}
	return nil
}
