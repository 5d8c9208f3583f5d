// internal/models/task.go
package models

import "time"

// TaskType is the closed set of relief task categories.
type TaskType string

const (
	TypeCleanup            TaskType = "cleanup"
	TypeRescue             TaskType = "rescue"
	TypeSupplyDelivery     TaskType = "supply_delivery"
	TypeMedicalAid         TaskType = "medical_aid"
	TypeShelterSupport     TaskType = "shelter_support"
	TypeRepairMaintenance  TaskType = "repair_maintenance"
	TypeEquipmentOperation TaskType = "equipment_operation"
	TypeCommunityService   TaskType = "community_service"
)

// TaskTypes lists every TaskType in declaration order.
var TaskTypes = []TaskType{
	TypeCleanup, TypeRescue, TypeSupplyDelivery, TypeMedicalAid,
	TypeShelterSupport, TypeRepairMaintenance, TypeEquipmentOperation, TypeCommunityService,
}

var taskTypeLabels = map[TaskType]string{
	TypeCleanup:            "環境清理",
	TypeRescue:             "緊急救援",
	TypeSupplyDelivery:     "物資配送",
	TypeMedicalAid:         "醫療支援",
	TypeShelterSupport:     "收容支援",
	TypeRepairMaintenance:  "修繕維護",
	TypeEquipmentOperation: "設備操作",
	TypeCommunityService:   "社區服務",
}

// Label returns the display label; unknown values are returned as-is.
func (t TaskType) Label() string {
	if l, ok := taskTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

func (t TaskType) Valid() bool {
	_, ok := taskTypeLabels[t]
	return ok
}

// TaskStatus is the closed set of task lifecycle states.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusAvailable  TaskStatus = "available"
	StatusClaimed    TaskStatus = "claimed"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

var TaskStatuses = []TaskStatus{
	StatusPending, StatusAvailable, StatusClaimed, StatusInProgress, StatusCompleted, StatusCancelled,
}

var taskStatusLabels = map[TaskStatus]string{
	StatusPending:    "待審核",
	StatusAvailable:  "可認領",
	StatusClaimed:    "已認領",
	StatusInProgress: "進行中",
	StatusCompleted:  "已完成",
	StatusCancelled:  "已取消",
}

func (s TaskStatus) Label() string {
	if l, ok := taskStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s TaskStatus) Valid() bool {
	_, ok := taskStatusLabels[s]
	return ok
}

const (
	MinDangerLevel = 1
	MaxDangerLevel = 5
)

// Task is the validated task shape served to clients. It is only ever built
// by the normalizer from a RawTask.
type Task struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Type                   TaskType   `json:"type"`
	Status                 TaskStatus `json:"status"`
	WorkLocation           string     `json:"work_location"`
	Weight                 int        `json:"weight"`
	RequiredNumberOfPeople int        `json:"required_number_of_people"`
	MaximumNumberOfPeople  int        `json:"maximum_number_of_people"`
	ClaimedCount           int        `json:"claimed_count"`
	DangerLevel            int        `json:"danger_level"`
	RequiredSkills         []string   `json:"required_skills,omitempty"`
	ContactNumber          string     `json:"contact_number,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
	StartAt                *time.Time `json:"start_at,omitempty"`
	Deadline               *time.Time `json:"deadline,omitempty"`
	CreatorID              string     `json:"creator_id"`
	CreatorName            string     `json:"creator_name,omitempty"`
	CreatorRole            string     `json:"creator_role,omitempty"`
	ApprovalStatus         string     `json:"approval_status"`
	ApprovedBy             string     `json:"approved_by,omitempty"`
	ApprovedAt             *time.Time `json:"approved_at,omitempty"`
	ApproverName           string     `json:"approver_name,omitempty"`
	CanClaim               bool       `json:"can_claim"`
	CanEdit                bool       `json:"can_edit"`
}

// TaskFilter narrows a task list. Zero values mean "no constraint".
type TaskFilter struct {
	Type   TaskType
	Status TaskStatus
}

// IsZero reports whether the filter selects every task.
func (f TaskFilter) IsZero() bool {
	return f.Type == "" && f.Status == ""
}

// String is the canonical cache-key form of the filter.
func (f TaskFilter) String() string {
	if f.IsZero() {
		return "all"
	}
	return "type=" + string(f.Type) + "&status=" + string(f.Status)
}

// Match reports whether t passes the filter.
func (f TaskFilter) Match(t Task) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// TaskInput is the create/update body forwarded to the task API.
type TaskInput struct {
	Title                  string   `json:"title" binding:"required,max=100"`
	Description            string   `json:"description" binding:"required,min=5,max=200"`
	Type                   TaskType `json:"type" binding:"required"`
	WorkLocation           string   `json:"work_location" binding:"required"`
	RequiredNumberOfPeople int      `json:"required_number_of_people" binding:"min=1,max=50"`
	MaximumNumberOfPeople  int      `json:"maximum_number_of_people,omitempty"`
	RequiredSkills         []string `json:"required_skills,omitempty"`
	ContactNumber          string   `json:"contact_number,omitempty"`
	StartAt                string   `json:"start_at,omitempty"`
	Deadline               string   `json:"deadline,omitempty"`
	DangerLevel            int      `json:"danger_level" binding:"min=1,max=5"`
}

// TaskList is a normalized page of tasks in backend order.
type TaskList struct {
	Tasks      []Task `json:"data"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
}

// Find returns the task with id, if present.
func (l TaskList) Find(id string) (Task, bool) {
	for _, t := range l.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}
