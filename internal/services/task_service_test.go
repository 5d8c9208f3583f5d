package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"reliefboard/internal/apierror"
	"reliefboard/internal/models"
	"reliefboard/internal/query"
	"reliefboard/internal/realtime"
)

func seedTasks() []models.RawTask {
	return []models.RawTask{
		{ID: "1", Title: "清淤", Type: "cleanup", Status: "available", CreatedAt: "2025-10-01T08:00:00Z"},
		{ID: "2", Title: "受困民眾", Type: "rescue", Status: "pending", CreatedAt: "2025-10-02T08:00:00Z"},
		{ID: "3", Title: "送水", Type: "supply_delivery", Status: "available", CreatedAt: "2025-09-30T08:00:00Z"},
	}
}

func testCacheOptions(t *testing.T) query.Options {
	return query.Options{
		Logger: zaptest.NewLogger(t),
		Retry:  query.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond},
	}
}

type serviceFixture struct {
	api       *fakeAPI
	cache     *query.Cache
	svc       TaskService
	notifier  *recordingNotifier
	publisher *recordingPublisher
}

func newServiceFixture(t *testing.T, tasks ...models.RawTask) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		api:       newFakeAPI(tasks...),
		cache:     query.New(testCacheOptions(t)),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewTaskService(TaskServiceDeps{
		API:      f.api,
		Cache:    f.cache,
		Notifier: f.notifier,
		Events:   f.publisher,
		Actor:    "志工小明",
		Logger:   zaptest.NewLogger(t),
	})
	t.Cleanup(f.cache.Wait)
	return f
}

func TestTaskService_ListIsCached(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	list, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 3)
	assert.Equal(t, models.TypeRescue, list.Tasks[1].Type)
	assert.Equal(t, models.StatusPending, list.Tasks[1].Status)

	_, err = f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.count("ListTasks"))
}

func TestTaskService_ListEnforcesFilter(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)

	list, err := f.svc.List(context.Background(), models.TaskFilter{Status: models.StatusAvailable})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 2)
	for _, task := range list.Tasks {
		assert.Equal(t, models.StatusAvailable, task.Status)
	}

	list, err = f.svc.List(context.Background(), models.TaskFilter{Type: models.TypeRescue, Status: models.StatusAvailable})
	require.NoError(t, err)
	assert.Empty(t, list.Tasks)
}

func TestTaskService_DetailSeededFromList(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	_, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)

	task, err := f.svc.Get(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "送水", task.Title)
	assert.Zero(t, f.api.count("GetTask"))
}

func TestTaskService_DetailSeededFromFilteredList(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	_, err := f.svc.List(ctx, models.TaskFilter{Type: models.TypeRescue})
	require.NoError(t, err)

	task, err := f.svc.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "受困民眾", task.Title)
	assert.Zero(t, f.api.count("GetTask"))
}

func TestTaskService_GetMissing(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)

	_, err := f.svc.Get(context.Background(), "404")
	var ae *apierror.Error
	require.ErrorAs(t, err, &ae)
	assert.True(t, ae.NotFound())
	assert.Equal(t, "找不到此任務", ae.Message)

	_, err = f.svc.Get(context.Background(), "")
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apierror.KindClient, ae.Kind)
	assert.Equal(t, 1, f.api.count("GetTask"))
}

func TestTaskService_CreateInvalidatesLists(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	before, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, before.Tasks, 3)

	created, err := f.svc.Create(ctx, models.TaskInput{
		Title:        "搬運沙包",
		Type:         models.TypeCleanup,
		WorkLocation: "光復鄉",
		DangerLevel:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, "101", created.ID)

	after, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, after.Tasks, 4)
	assert.Equal(t, 2, f.api.count("ListTasks"))

	// the created task is readable without a round trip
	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "搬運沙包", got.Title)
	assert.Zero(t, f.api.count("GetTask"))

	notices := f.notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeTaskCreated, notices[0].Event)
	assert.Equal(t, "志工小明", notices[0].Actor)

	events := f.publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventInvalidate, events[0].Type)
	assert.Equal(t, "tasks", events[0].Prefix)
	assert.Equal(t, "task.created", events[0].Reason)
}

func TestTaskService_FailedMutationKeepsCache(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	_, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)

	f.api.setFail(&apierror.StatusError{Code: 500})
	_, err = f.svc.Create(ctx, models.TaskInput{Title: "x"})
	require.Error(t, err)
	f.api.setFail(nil)

	_, err = f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.count("ListTasks"))
	assert.Empty(t, f.notifier.all())
	assert.Empty(t, f.publisher.all())
}

func TestTaskService_DeleteAndApprove(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "2")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "2"))
	snap, ok := f.cache.Peek(taskDetailKey("2"))
	require.True(t, ok)
	assert.True(t, snap.Invalidated)

	approved, err := f.svc.Approve(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, approved.Status)
	assert.Equal(t, "approved", approved.ApprovalStatus)

	reasons := []string{}
	for _, ev := range f.publisher.all() {
		reasons = append(reasons, ev.Reason)
	}
	assert.Equal(t, []string{"task.deleted", "task.approved"}, reasons)
}

func TestTaskService_ClaimNotifiesWithCachedTask(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	_, err := f.svc.List(ctx, models.TaskFilter{})
	require.NoError(t, err)

	out, err := f.svc.Claim(ctx, "1", "下午到")
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"1"}`, string(out))

	_, err = f.svc.ClaimByRequest(ctx, models.ClaimRequest{TaskID: "3"})
	require.NoError(t, err)

	notices := f.notifier.all()
	require.Len(t, notices, 2)
	assert.Equal(t, NoticeTaskClaimed, notices[0].Event)
	assert.Equal(t, "清淤", notices[0].Task.Title)
	// the first claim invalidated the list, so only the id is known
	assert.Equal(t, "3", notices[1].Task.ID)
	assert.Empty(t, notices[1].Task.Title)
}

func TestTaskService_UpdateClaimStatusValidates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateClaimStatus(ctx, "c1", models.ClaimStatusUpdate{Status: "lost"})
	var ae *apierror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apierror.KindClient, ae.Kind)
	assert.Zero(t, f.api.count("UpdateClaimStatus"))

	_, err = f.svc.UpdateClaimStatus(ctx, "c1", models.ClaimStatusUpdate{Status: models.ClaimCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, f.api.count("UpdateClaimStatus"))
}

func TestTaskService_PassThroughReads(t *testing.T) {
	f := newServiceFixture(t, seedTasks()...)
	ctx := context.Background()

	reads := map[string]func() (json.RawMessage, error){
		"Statistics":  func() (json.RawMessage, error) { return f.svc.Statistics(ctx) },
		"TaskClaims":  func() (json.RawMessage, error) { return f.svc.Claims(ctx, "1") },
		"ActivityLog": func() (json.RawMessage, error) { return f.svc.ActivityLog(ctx, "1") },
		"Conflicts":   func() (json.RawMessage, error) { return f.svc.Conflicts(ctx, "1") },
		"MyClaims":    func() (json.RawMessage, error) { return f.svc.MyClaims(ctx) },
		"MyHistory":   func() (json.RawMessage, error) { return f.svc.MyHistory(ctx) },
	}
	for method, read := range reads {
		t.Run(method, func(t *testing.T) {
			out, err := read()
			require.NoError(t, err)
			assert.JSONEq(t, `{"method":"`+method+`"}`, string(out))
			_, err = read()
			require.NoError(t, err)
			assert.Equal(t, 1, f.api.count(method))
		})
	}

	avail, err := f.svc.Available(ctx)
	require.NoError(t, err)
	assert.Len(t, avail.Tasks, 2)

	pending, err := f.svc.PendingApproval(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending.Tasks)
}

func TestTaskService_SnapshotWarmStart(t *testing.T) {
	api := newFakeAPI(seedTasks()...)
	store := &memorySnapshots{
		list:    models.TaskList{Tasks: []models.Task{{ID: "old", Title: "快照"}}, TotalCount: 1},
		savedAt: time.Now().Add(-time.Hour),
		ok:      true,
	}
	cache := query.New(testCacheOptions(t))
	svc := NewTaskService(TaskServiceDeps{API: api, Cache: cache, Snapshots: store, Logger: zaptest.NewLogger(t)})

	list, err := svc.List(context.Background(), models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "old", list.Tasks[0].ID)

	// the snapshot is stale, so a background refetch replaces it
	cache.Wait()
	assert.Equal(t, 1, api.count("ListTasks"))
	assert.Equal(t, 1, store.saveCount())

	list, err = svc.List(context.Background(), models.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Tasks, 3)
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{ID: "a", CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Hour)},
		{ID: "c", CreatedAt: base},
		{ID: "d", CreatedAt: base.Add(2 * time.Hour)},
	}
	got := SortNewestFirst(tasks)

	ids := make([]string, len(got))
	for i, x := range got {
		ids[i] = x.ID
	}
	assert.Equal(t, []string{"d", "b", "a", "c"}, ids)
	assert.Equal(t, "a", tasks[0].ID, "input is not reordered")
}
