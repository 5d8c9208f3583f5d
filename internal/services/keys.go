package services

import (
	"time"

	"reliefboard/internal/models"
	"reliefboard/internal/query"
)

// Cache keys. Everything task-related lives under "tasks" so one prefix
// invalidation after a mutation covers it all.
var (
	tasksRoot       = query.Key{"tasks"}
	availableKey    = query.Key{"tasks", "available"}
	pendingKey      = query.Key{"tasks", "pending-approval"}
	statisticsKey   = query.Key{"tasks", "statistics"}
	myClaimsKey     = query.Key{"tasks", "my", "claims"}
	myHistoryKey    = query.Key{"tasks", "my", "history"}
	placemarksKey   = query.Key{"map", "placemarks"}
	taskListsPrefix = query.Key{"tasks", "list"}
)

func taskListKey(f models.TaskFilter) query.Key {
	return query.Key{"tasks", "list", f.String()}
}

func taskDetailKey(id string) query.Key { return query.Key{"tasks", "detail", id} }
func taskClaimsKey(id string) query.Key { return query.Key{"tasks", "claims", id} }
func activityKey(id string) query.Key   { return query.Key{"tasks", "activity", id} }
func conflictsKey(id string) query.Key  { return query.Key{"tasks", "conflicts", id} }

const (
	listStaleTime   = 5 * time.Minute
	detailStaleTime = 5 * time.Minute
	shortStaleTime  = time.Minute
	mapStaleTime    = time.Hour
)
