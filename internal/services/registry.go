package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reliefboard/internal/normalize"
	"reliefboard/internal/query"
)

// RegistryOptions configure how per-session services are built.
type RegistryOptions struct {
	// NewAPI returns an API client authenticating with token; "" is the
	// anonymous client.
	NewAPI     func(token string) TaskAPI
	Cache      query.Options
	Normalizer *normalize.Normalizer
	Notifier   Notifier
	Events     EventPublisher
	Snapshots  SnapshotStore
	// SessionIdle evicts a session nobody used for this long.
	SessionIdle time.Duration
	Logger      *zap.Logger
	Now         func() time.Time
}

type session struct {
	tasks    TaskService
	cache    *query.Cache
	lastUsed time.Time
}

// Registry owns one API client and cache per session token plus an anonymous
// instance for public reads. A mutation in any session invalidates every
// session's cache.
type Registry struct {
	opts RegistryOptions

	mu       sync.Mutex
	sessions map[string]*session
	anon     *session
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionIdle <= 0 {
		opts.SessionIdle = 12 * time.Hour
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(opts.Logger)
	}
	if opts.Cache.Logger == nil {
		opts.Cache.Logger = opts.Logger
	}
	r := &Registry{opts: opts, sessions: make(map[string]*session)}
	r.anon = r.newSession("", "")
	return r
}

// Anonymous is the service for unauthenticated reads.
func (r *Registry) Anonymous() TaskService { return r.anon.tasks }

// For returns the service bound to token, creating it on first use. actor
// names the user in notifications.
func (r *Registry) For(token, actor string) TaskService {
	if token == "" {
		return r.anon.tasks
	}
	now := r.opts.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		s = r.newSession(token, actor)
		r.sessions[token] = s
		r.opts.Logger.Debug("[registry][session][new]", zap.String("actor", actor), zap.Int("sessions", len(r.sessions)))
	}
	s.lastUsed = now
	return s.tasks
}

// Release drops the session bound to token, e.g. on logout.
func (r *Registry) Release(token string) bool {
	r.mu.Lock()
	s, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()
	if ok {
		s.cache.Clear()
	}
	return ok
}

// Invalidate marks prefix invalidated in every live cache.
func (r *Registry) Invalidate(prefix query.Key) {
	r.anon.cache.Invalidate(prefix)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		s.cache.Invalidate(prefix)
	}
}

func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Prune evicts idle sessions and garbage-collects every cache.
func (r *Registry) Prune(now time.Time) {
	r.anon.cache.Prune(now)
	r.mu.Lock()
	var evicted []*session
	for tok, s := range r.sessions {
		if now.Sub(s.lastUsed) > r.opts.SessionIdle {
			delete(r.sessions, tok)
			evicted = append(evicted, s)
			continue
		}
		s.cache.Prune(now)
	}
	r.mu.Unlock()
	for _, s := range evicted {
		s.cache.Clear()
	}
	if len(evicted) > 0 {
		r.opts.Logger.Debug("[registry][evict]", zap.Int("sessions", len(evicted)))
	}
}

// Run prunes once a minute until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Prune(r.opts.Now())
		}
	}
}

// Wait blocks until background refetches in every cache have finished.
func (r *Registry) Wait() {
	r.anon.cache.Wait()
	r.mu.Lock()
	caches := make([]*query.Cache, 0, len(r.sessions))
	for _, s := range r.sessions {
		caches = append(caches, s.cache)
	}
	r.mu.Unlock()
	for _, c := range caches {
		c.Wait()
	}
}

func (r *Registry) newSession(token, actor string) *session {
	cache := query.New(r.opts.Cache)
	tasks := NewTaskService(TaskServiceDeps{
		API:        r.opts.NewAPI(token),
		Cache:      cache,
		Normalizer: r.opts.Normalizer,
		Invalidate: r.Invalidate,
		Notifier:   r.opts.Notifier,
		Events:     r.opts.Events,
		Snapshots:  r.opts.Snapshots,
		Actor:      actor,
		Logger:     r.opts.Logger.With(zap.Bool("authenticated", token != "")),
	})
	return &session{tasks: tasks, cache: cache, lastUsed: r.opts.Now()}
}
