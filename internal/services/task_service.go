// internal/services/task_service.go
package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"reliefboard/internal/apierror"
	"reliefboard/internal/models"
	"reliefboard/internal/normalize"
	"reliefboard/internal/query"
	"reliefboard/internal/realtime"
)

// TaskAPI is the slice of the remote task API the service needs.
// *apiclient.Client implements it.
type TaskAPI interface {
	ListTasks(ctx context.Context, filter models.TaskFilter) (models.RawTaskList, error)
	GetTask(ctx context.Context, id string) (models.RawTask, error)
	CreateTask(ctx context.Context, in models.TaskInput) (models.RawTask, error)
	UpdateTask(ctx context.Context, id string, in models.TaskInput) (models.RawTask, error)
	DeleteTask(ctx context.Context, id string) error
	ApproveTask(ctx context.Context, id string) (models.RawTask, error)
	ClaimTask(ctx context.Context, id, notes string) (json.RawMessage, error)
	Claim(ctx context.Context, req models.ClaimRequest) (json.RawMessage, error)
	TaskClaims(ctx context.Context, id string) (models.Claims, error)
	UpdateClaimStatus(ctx context.Context, claimID string, upd models.ClaimStatusUpdate) (json.RawMessage, error)
	MyClaims(ctx context.Context) (models.Claims, error)
	MyHistory(ctx context.Context) (json.RawMessage, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	ActivityLog(ctx context.Context, id string) (models.ActivityLog, error)
	Conflicts(ctx context.Context, id string) (models.Conflicts, error)
	PendingApproval(ctx context.Context) (models.RawTaskList, error)
	AvailableTasks(ctx context.Context) (models.RawTaskList, error)
}

// TaskService defines the task operations served to one session. Reads go
// through the session's cache; mutations invalidate every live cache before
// returning.
type TaskService interface {
	List(ctx context.Context, filter models.TaskFilter) (models.TaskList, error)
	Get(ctx context.Context, id string) (models.Task, error)
	Available(ctx context.Context) (models.TaskList, error)
	PendingApproval(ctx context.Context) (models.TaskList, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	Claims(ctx context.Context, taskID string) (models.Claims, error)
	ActivityLog(ctx context.Context, taskID string) (models.ActivityLog, error)
	Conflicts(ctx context.Context, taskID string) (models.Conflicts, error)
	MyClaims(ctx context.Context) (models.Claims, error)
	MyHistory(ctx context.Context) (json.RawMessage, error)

	Create(ctx context.Context, in models.TaskInput) (models.Task, error)
	Update(ctx context.Context, id string, in models.TaskInput) (models.Task, error)
	Delete(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) (models.Task, error)
	Claim(ctx context.Context, taskID, notes string) (json.RawMessage, error)
	ClaimByRequest(ctx context.Context, req models.ClaimRequest) (json.RawMessage, error)
	UpdateClaimStatus(ctx context.Context, claimID string, upd models.ClaimStatusUpdate) (json.RawMessage, error)
}

// EventPublisher is satisfied by *realtime.Hub.
type EventPublisher interface {
	Publish(ev realtime.Event)
}

type taskService struct {
	api        TaskAPI
	cache      *query.Cache
	norm       *normalize.Normalizer
	invalidate func(prefix query.Key)
	notifier   Notifier
	events     EventPublisher
	snapshots  SnapshotStore
	actor      string
	logger     *zap.Logger
}

// TaskServiceDeps wires a TaskService. Only API and Cache are required.
type TaskServiceDeps struct {
	API        TaskAPI
	Cache      *query.Cache
	Normalizer *normalize.Normalizer
	// Invalidate fans a prefix invalidation out to every live cache. It
	// defaults to invalidating Cache only.
	Invalidate func(prefix query.Key)
	Notifier   Notifier
	Events     EventPublisher
	Snapshots  SnapshotStore
	// Actor names the session user in notifications.
	Actor  string
	Logger *zap.Logger
}

// NewTaskService creates a new instance of TaskService.
func NewTaskService(d TaskServiceDeps) TaskService {
	s := &taskService{
		api:        d.API,
		cache:      d.Cache,
		norm:       d.Normalizer,
		invalidate: d.Invalidate,
		notifier:   d.Notifier,
		events:     d.Events,
		snapshots:  d.Snapshots,
		actor:      d.Actor,
		logger:     d.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.norm == nil {
		s.norm = normalize.New(s.logger)
	}
	if s.invalidate == nil {
		s.invalidate = func(prefix query.Key) { d.Cache.Invalidate(prefix) }
	}
	if s.notifier == nil {
		s.notifier = Notifiers(nil)
	}
	return s
}

func (s *taskService) List(ctx context.Context, filter models.TaskFilter) (models.TaskList, error) {
	opts := query.FetchOptions{StaleTime: listStaleTime}
	if filter.IsZero() && s.snapshots != nil {
		opts.Initial = s.snapshotSeed
	}
	return query.Fetch(ctx, s.cache, taskListKey(filter), opts, func(ctx context.Context) (models.TaskList, error) {
		raw, err := s.api.ListTasks(ctx, filter)
		if err != nil {
			return models.TaskList{}, err
		}
		list := s.toList(raw)
		// the API may ignore the filter; enforce it here
		if !filter.IsZero() {
			list.Tasks = filterTasks(list.Tasks, filter)
		}
		if filter.IsZero() && s.snapshots != nil {
			if err := s.snapshots.Save(ctx, list); err != nil {
				s.logger.Warn("[task][snapshot][save][err]", zap.Error(err))
			}
		}
		return list, nil
	})
}

// Get serves a task detail. A missing detail entry is seeded from any cached
// list that contains the task, so opening a task from the list needs no
// round trip.
func (s *taskService) Get(ctx context.Context, id string) (models.Task, error) {
	if id == "" {
		return models.Task{}, apierror.BadRequest("缺少任務編號", nil)
	}
	opts := query.FetchOptions{
		StaleTime: detailStaleTime,
		Initial:   func() (any, time.Time, bool) { return s.fromCachedList(id) },
	}
	return query.Fetch(ctx, s.cache, taskDetailKey(id), opts, func(ctx context.Context) (models.Task, error) {
		raw, err := s.api.GetTask(ctx, id)
		if err != nil {
			return models.Task{}, err
		}
		return s.norm.Normalize(raw), nil
	})
}

func (s *taskService) Available(ctx context.Context) (models.TaskList, error) {
	return query.Fetch(ctx, s.cache, availableKey, query.FetchOptions{StaleTime: shortStaleTime},
		func(ctx context.Context) (models.TaskList, error) {
			raw, err := s.api.AvailableTasks(ctx)
			if err != nil {
				return models.TaskList{}, err
			}
			return s.toList(raw), nil
		})
}

func (s *taskService) PendingApproval(ctx context.Context) (models.TaskList, error) {
	return query.Fetch(ctx, s.cache, pendingKey, query.FetchOptions{StaleTime: shortStaleTime},
		func(ctx context.Context) (models.TaskList, error) {
			raw, err := s.api.PendingApproval(ctx)
			if err != nil {
				return models.TaskList{}, err
			}
			return s.toList(raw), nil
		})
}

func (s *taskService) Statistics(ctx context.Context) (models.Statistics, error) {
	return s.rawRead(ctx, statisticsKey, s.api.Statistics)
}

func (s *taskService) Claims(ctx context.Context, taskID string) (models.Claims, error) {
	return s.rawRead(ctx, taskClaimsKey(taskID), func(ctx context.Context) (json.RawMessage, error) {
		return s.api.TaskClaims(ctx, taskID)
	})
}

func (s *taskService) ActivityLog(ctx context.Context, taskID string) (models.ActivityLog, error) {
	return s.rawRead(ctx, activityKey(taskID), func(ctx context.Context) (json.RawMessage, error) {
		return s.api.ActivityLog(ctx, taskID)
	})
}

func (s *taskService) Conflicts(ctx context.Context, taskID string) (models.Conflicts, error) {
	return s.rawRead(ctx, conflictsKey(taskID), func(ctx context.Context) (json.RawMessage, error) {
		return s.api.Conflicts(ctx, taskID)
	})
}

func (s *taskService) MyClaims(ctx context.Context) (models.Claims, error) {
	return s.rawRead(ctx, myClaimsKey, s.api.MyClaims)
}

func (s *taskService) MyHistory(ctx context.Context) (json.RawMessage, error) {
	return s.rawRead(ctx, myHistoryKey, s.api.MyHistory)
}

func (s *taskService) Create(ctx context.Context, in models.TaskInput) (models.Task, error) {
	raw, err := s.api.CreateTask(ctx, in)
	if err != nil {
		s.logger.Warn("[task][create][err]", zap.Error(err))
		return models.Task{}, err
	}
	task := s.norm.Normalize(raw)
	s.afterMutation("task.created", task.ID)
	if task.ID != "" {
		s.cache.Set(taskDetailKey(task.ID), task)
	}
	s.logger.Info("[task][create][ok]", zap.String("id", task.ID), zap.String("type", string(task.Type)))
	s.notify(ctx, TaskNotice{Event: NoticeTaskCreated, Task: task, Actor: s.actor})
	return task, nil
}

func (s *taskService) Update(ctx context.Context, id string, in models.TaskInput) (models.Task, error) {
	raw, err := s.api.UpdateTask(ctx, id, in)
	if err != nil {
		s.logger.Warn("[task][update][err]", zap.String("id", id), zap.Error(err))
		return models.Task{}, err
	}
	task := s.norm.Normalize(raw)
	if task.ID == "" {
		task.ID = id
	}
	s.afterMutation("task.updated", id)
	s.cache.Set(taskDetailKey(id), task)
	s.logger.Info("[task][update][ok]", zap.String("id", id))
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, id string) error {
	if err := s.api.DeleteTask(ctx, id); err != nil {
		s.logger.Warn("[task][delete][err]", zap.String("id", id), zap.Error(err))
		return err
	}
	s.afterMutation("task.deleted", id)
	s.logger.Info("[task][delete][ok]", zap.String("id", id))
	return nil
}

func (s *taskService) Approve(ctx context.Context, id string) (models.Task, error) {
	raw, err := s.api.ApproveTask(ctx, id)
	if err != nil {
		s.logger.Warn("[task][approve][err]", zap.String("id", id), zap.Error(err))
		return models.Task{}, err
	}
	task := s.norm.Normalize(raw)
	s.afterMutation("task.approved", id)
	s.logger.Info("[task][approve][ok]", zap.String("id", id))
	return task, nil
}

func (s *taskService) Claim(ctx context.Context, taskID, notes string) (json.RawMessage, error) {
	out, err := s.api.ClaimTask(ctx, taskID, notes)
	if err != nil {
		s.logger.Warn("[task][claim][err]", zap.String("id", taskID), zap.Error(err))
		return nil, err
	}
	s.afterClaim(ctx, taskID)
	return out, nil
}

func (s *taskService) ClaimByRequest(ctx context.Context, req models.ClaimRequest) (json.RawMessage, error) {
	out, err := s.api.Claim(ctx, req)
	if err != nil {
		s.logger.Warn("[task][claim][err]", zap.String("id", req.TaskID), zap.Error(err))
		return nil, err
	}
	s.afterClaim(ctx, req.TaskID)
	return out, nil
}

func (s *taskService) UpdateClaimStatus(ctx context.Context, claimID string, upd models.ClaimStatusUpdate) (json.RawMessage, error) {
	if !upd.Status.Valid() {
		return nil, apierror.BadRequest("無效的認領狀態", nil)
	}
	out, err := s.api.UpdateClaimStatus(ctx, claimID, upd)
	if err != nil {
		s.logger.Warn("[claim][status][err]", zap.String("claim_id", claimID), zap.Error(err))
		return nil, err
	}
	s.afterMutation("claim.updated", "")
	s.logger.Info("[claim][status][ok]", zap.String("claim_id", claimID), zap.String("status", string(upd.Status)))
	return out, nil
}

func (s *taskService) afterClaim(ctx context.Context, taskID string) {
	// look the task up before the lists are invalidated
	task := models.Task{ID: taskID}
	if t, ok := query.PeekValue[models.Task](s.cache, taskDetailKey(taskID)); ok {
		task = t
	} else if t, _, ok := s.fromCachedList(taskID); ok {
		task = t.(models.Task)
	}

	s.afterMutation("task.claimed", taskID)
	s.logger.Info("[task][claim][ok]", zap.String("id", taskID), zap.String("actor", s.actor))
	s.notify(ctx, TaskNotice{Event: NoticeTaskClaimed, Task: task, Actor: s.actor})
}

// afterMutation runs before the mutation returns to its caller, so any read
// issued afterwards observes the invalidated state.
func (s *taskService) afterMutation(reason, taskID string) {
	s.invalidate(tasksRoot)
	if s.events != nil {
		s.events.Publish(realtime.Event{
			Type:   realtime.EventInvalidate,
			Prefix: tasksRoot.String(),
			Reason: reason,
			TaskID: taskID,
		})
	}
}

func (s *taskService) notify(ctx context.Context, n TaskNotice) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("[task][notify][err]", zap.String("event", n.Event), zap.Error(err))
	}
}

func (s *taskService) rawRead(ctx context.Context, key query.Key, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	return query.Fetch(ctx, s.cache, key, query.FetchOptions{StaleTime: shortStaleTime}, fn)
}

func (s *taskService) toList(raw models.RawTaskList) models.TaskList {
	return models.TaskList{
		Tasks:      s.norm.NormalizeAll(raw.Tasks),
		TotalCount: raw.TotalCount,
		HasMore:    raw.HasMore,
	}
}

// fromCachedList finds id in any cached task list, filtered or not, then in
// the available and pending lists.
func (s *taskService) fromCachedList(id string) (any, time.Time, bool) {
	snaps := s.cache.PeekPrefix(taskListsPrefix)
	for _, key := range []query.Key{availableKey, pendingKey} {
		if snap, ok := s.cache.Peek(key); ok && snap.HasValue && !snap.Invalidated {
			snaps = append(snaps, snap)
		}
	}
	for _, snap := range snaps {
		list, ok := snap.Value.(models.TaskList)
		if !ok {
			continue
		}
		if t, ok := list.Find(id); ok {
			return t, snap.UpdatedAt, true
		}
	}
	return nil, time.Time{}, false
}

func (s *taskService) snapshotSeed() (any, time.Time, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	list, savedAt, ok, err := s.snapshots.Latest(ctx)
	if err != nil {
		s.logger.Warn("[task][snapshot][load][err]", zap.Error(err))
		return nil, time.Time{}, false
	}
	if !ok {
		return nil, time.Time{}, false
	}
	s.logger.Info("[task][snapshot][warm]", zap.Int("tasks", len(list.Tasks)), zap.Time("saved_at", savedAt))
	return list, savedAt, true
}

func filterTasks(tasks []models.Task, f models.TaskFilter) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out
}

// SortNewestFirst returns a copy of tasks ordered by created_at descending.
// Ties keep backend order.
func SortNewestFirst(tasks []models.Task) []models.Task {
	out := append([]models.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
