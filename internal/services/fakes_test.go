package services

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"reliefboard/internal/apierror"
	"reliefboard/internal/models"
	"reliefboard/internal/realtime"
)

// fakeAPI is an in-memory task API. It counts calls per method.
type fakeAPI struct {
	mu     sync.Mutex
	tasks  []models.RawTask
	calls  map[string]int
	nextID int
	fail   error
}

func newFakeAPI(tasks ...models.RawTask) *fakeAPI {
	return &fakeAPI{tasks: tasks, calls: map[string]int{}, nextID: 100}
}

func (f *fakeAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeAPI) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeAPI) hit(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	return f.fail
}

func (f *fakeAPI) snapshot() []models.RawTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RawTask(nil), f.tasks...)
}

func (f *fakeAPI) ListTasks(context.Context, models.TaskFilter) (models.RawTaskList, error) {
	if err := f.hit("ListTasks"); err != nil {
		return models.RawTaskList{}, err
	}
	tasks := f.snapshot()
	return models.RawTaskList{Tasks: tasks, TotalCount: len(tasks)}, nil
}

func (f *fakeAPI) GetTask(_ context.Context, id string) (models.RawTask, error) {
	if err := f.hit("GetTask"); err != nil {
		return models.RawTask{}, err
	}
	for _, t := range f.snapshot() {
		if t.ID == id {
			return t, nil
		}
	}
	return models.RawTask{}, apierror.Classify(&apierror.StatusError{Code: 404}, apierror.ResourceTask)
}

func (f *fakeAPI) CreateTask(_ context.Context, in models.TaskInput) (models.RawTask, error) {
	if err := f.hit("CreateTask"); err != nil {
		return models.RawTask{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	raw := models.RawTask{
		ID:           strconv.Itoa(f.nextID),
		Title:        in.Title,
		Type:         string(in.Type),
		Status:       "pending",
		WorkLocation: in.WorkLocation,
		DangerLevel:  float64(in.DangerLevel),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	f.tasks = append(f.tasks, raw)
	return raw, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id string, in models.TaskInput) (models.RawTask, error) {
	if err := f.hit("UpdateTask"); err != nil {
		return models.RawTask{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i].Title = in.Title
			return f.tasks[i], nil
		}
	}
	return models.RawTask{}, &apierror.StatusError{Code: 404}
}

func (f *fakeAPI) DeleteTask(_ context.Context, id string) error {
	if err := f.hit("DeleteTask"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAPI) ApproveTask(_ context.Context, id string) (models.RawTask, error) {
	if err := f.hit("ApproveTask"); err != nil {
		return models.RawTask{}, err
	}
	return models.RawTask{ID: id, Status: "available", ApprovalStatus: "approved"}, nil
}

func (f *fakeAPI) ClaimTask(_ context.Context, id, _ string) (json.RawMessage, error) {
	if err := f.hit("ClaimTask"); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"task_id":"` + id + `"}`), nil
}

func (f *fakeAPI) Claim(_ context.Context, req models.ClaimRequest) (json.RawMessage, error) {
	if err := f.hit("Claim"); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"task_id":"` + req.TaskID + `"}`), nil
}

func (f *fakeAPI) TaskClaims(context.Context, string) (models.Claims, error) {
	return f.raw("TaskClaims")
}

func (f *fakeAPI) UpdateClaimStatus(context.Context, string, models.ClaimStatusUpdate) (json.RawMessage, error) {
	return f.raw("UpdateClaimStatus")
}

func (f *fakeAPI) MyClaims(context.Context) (models.Claims, error) { return f.raw("MyClaims") }

func (f *fakeAPI) MyHistory(context.Context) (json.RawMessage, error) { return f.raw("MyHistory") }

func (f *fakeAPI) Statistics(context.Context) (models.Statistics, error) {
	return f.raw("Statistics")
}

func (f *fakeAPI) ActivityLog(context.Context, string) (models.ActivityLog, error) {
	return f.raw("ActivityLog")
}

func (f *fakeAPI) Conflicts(context.Context, string) (models.Conflicts, error) {
	return f.raw("Conflicts")
}

func (f *fakeAPI) PendingApproval(context.Context) (models.RawTaskList, error) {
	if err := f.hit("PendingApproval"); err != nil {
		return models.RawTaskList{}, err
	}
	return models.RawTaskList{}, nil
}

func (f *fakeAPI) AvailableTasks(context.Context) (models.RawTaskList, error) {
	if err := f.hit("AvailableTasks"); err != nil {
		return models.RawTaskList{}, err
	}
	var out []models.RawTask
	for _, t := range f.snapshot() {
		if t.Status == "available" {
			out = append(out, t)
		}
	}
	return models.RawTaskList{Tasks: out, TotalCount: len(out)}, nil
}

func (f *fakeAPI) raw(method string) (json.RawMessage, error) {
	if err := f.hit(method); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"method":"` + method + `"}`), nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []TaskNotice
}

func (r *recordingNotifier) Notify(_ context.Context, n TaskNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingNotifier) all() []TaskNotice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TaskNotice(nil), r.notices...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordingPublisher) Publish(ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) all() []realtime.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]realtime.Event(nil), r.events...)
}

type memorySnapshots struct {
	mu      sync.Mutex
	list    models.TaskList
	savedAt time.Time
	ok      bool
	saves   int
}

func (m *memorySnapshots) Save(_ context.Context, list models.TaskList) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list, m.savedAt, m.ok = list, time.Now(), true
	m.saves++
	return nil
}

func (m *memorySnapshots) Latest(context.Context) (models.TaskList, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list, m.savedAt, m.ok, nil
}

func (m *memorySnapshots) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
