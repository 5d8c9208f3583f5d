package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawTask is a task record exactly as the remote API sent it. Every field is
// untrusted: it may be missing, null, or of the wrong JSON type. Numbers decode
// as float64, so a runtime type test is the only check the normalizer needs.
type RawTask struct {
	ID                     any `json:"id"`
	Title                  any `json:"title"`
	Description            any `json:"description"`
	Type                   any `json:"type"`
	Status                 any `json:"status"`
	WorkLocation           any `json:"work_location"`
	RegistrationLocation   any `json:"registration_location"`
	LocationData           any `json:"location_data"` // {"address": ...} when well-formed
	Weight                 any `json:"weight"`
	RequiredNumberOfPeople any `json:"required_number_of_people"`
	MaximumNumberOfPeople  any `json:"maximum_number_of_people"`
	ClaimedCount           any `json:"claimed_count"`
	DangerLevel            any `json:"danger_level"`
	PriorityLevel          any `json:"priority_level"` // older name of danger_level
	RequiredSkills         any `json:"required_skills"`
	ContactNumber          any `json:"contact_number"`
	CreatedAt              any `json:"created_at"`
	UpdatedAt              any `json:"updated_at"`
	StartAt                any `json:"start_at"`
	Deadline               any `json:"deadline"`
	CreatorID              any `json:"creator_id"`
	CreatorName            any `json:"creator_name"`
	CreatorRole            any `json:"creator_role"`
	ApprovalStatus         any `json:"approval_status"`
	ApprovedBy             any `json:"approved_by"`
	ApprovedAt             any `json:"approved_at"`
	ApproverName           any `json:"approver_name"`
}

// RawTaskList decodes either a bare JSON array of tasks or the paginated
// envelope {"data": [...], "total_count": n, ...}.
type RawTaskList struct {
	Tasks      []RawTask
	TotalCount int
	HasMore    bool
}

func (l *RawTaskList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		l.Tasks = nil
		return nil
	}
	if trimmed[0] == '[' {
		var tasks []RawTask
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return err
		}
		l.Tasks = tasks
		l.TotalCount = len(tasks)
		return nil
	}
	var env struct {
		Data       json.RawMessage `json:"data"`
		TotalCount *int            `json:"total_count"`
		HasMore    bool            `json:"has_more"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	// A non-array data field is treated as an empty list.
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '[' {
		if err := json.Unmarshal(d, &l.Tasks); err != nil {
			return fmt.Errorf("decode task list data: %w", err)
		}
	}
	l.TotalCount = len(l.Tasks)
	if env.TotalCount != nil {
		l.TotalCount = *env.TotalCount
	}
	l.HasMore = env.HasMore
	return nil
}
