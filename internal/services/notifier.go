package services

import (
	"context"
	"errors"
	"time"

	"reliefboard/internal/models"
)

const (
	NoticeTaskCreated = "task.created"
	NoticeTaskClaimed = "task.claimed"
)

// TaskNotice is an outbound notification about a task mutation.
type TaskNotice struct {
	Event string
	Task  models.Task
	Actor string
}

type Notifier interface {
	Notify(ctx context.Context, n TaskNotice) error
}

// Notifiers sends to every notifier and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n TaskNotice) error {
	var errs []error
	for _, x := range ns {
		if x == nil {
			continue
		}
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SnapshotStore persists the last good task list so a restart can serve it
// before the first upstream fetch completes.
type SnapshotStore interface {
	Save(ctx context.Context, list models.TaskList) error
	Latest(ctx context.Context) (list models.TaskList, savedAt time.Time, ok bool, err error)
}
