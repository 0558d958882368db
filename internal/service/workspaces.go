package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iyhunko/dapp-marketplace/internal/metrics"
	"github.com/iyhunko/dapp-marketplace/internal/storage"
	"github.com/iyhunko/dapp-marketplace/internal/wallet"
)

const (
	// DefaultWorkspaceIdleTimeout is how long an unused workspace is kept.
	DefaultWorkspaceIdleTimeout = 30 * time.Minute
	// DefaultMaxWorkspaces caps the registry when no limit is configured.
	DefaultMaxWorkspaces = 10000

	maxSweepInterval = time.Minute

	evictIdle     = "idle"
	evictCapacity = "capacity"
)

// Workspace is the state kept for one browser session.
type Workspace struct {
	ID       string
	Session  *wallet.Session
	Workflow *ProductWorkflow

	lastUsed time.Time
}

// Workspaces creates and keeps one Workspace per browser session id. Workspaces
// unused for longer than the idle timeout are released by Start, and the least
// recently used one is released when the registry is full.
type Workspaces struct {
	provider wallet.Provider
	contract ProductContract
	uploader storage.Uploader
	outbox   *Outbox

	idleTimeout time.Duration
	max         int
	now         func() time.Time

	mu    sync.Mutex
	items map[string]*Workspace
}

// WorkspacesOption configures Workspaces.
type WorkspacesOption func(*Workspaces)

// WithIdleTimeout sets how long a workspace may stay unused.
func WithIdleTimeout(d time.Duration) WorkspacesOption {
	return func(ws *Workspaces) {
		if d > 0 {
			ws.idleTimeout = d
		}
	}
}

// WithMaxWorkspaces caps the number of live workspaces.
func WithMaxWorkspaces(n int) WorkspacesOption {
	return func(ws *Workspaces) {
		if n > 0 {
			ws.max = n
		}
	}
}

// WithClock replaces time.Now for idle tracking.
func WithClock(now func() time.Time) WorkspacesOption {
	return func(ws *Workspaces) {
		ws.now = now
	}
}

// NewWorkspaces creates an empty registry. provider, contract, uploader and outbox may be nil.
func NewWorkspaces(provider wallet.Provider, contract ProductContract, uploader storage.Uploader, outbox *Outbox, opts ...WorkspacesOption) *Workspaces {
	ws := &Workspaces{
		provider:    provider,
		contract:    contract,
		uploader:    uploader,
		outbox:      outbox,
		idleTimeout: DefaultWorkspaceIdleTimeout,
		max:         DefaultMaxWorkspaces,
		now:         time.Now,
		items:       make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(ws)
	}
	return ws
}

// HasProvider reports whether new sessions get a wallet provider.
func (ws *Workspaces) HasProvider() bool {
	return ws.provider != nil
}

// Lookup returns the workspace for id without creating one.
func (ws *Workspaces) Lookup(id string) (*Workspace, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	w, ok := ws.items[id]
	if ok {
		w.lastUsed = ws.now()
	}
	return w, ok
}

// Get returns the workspace for id, creating it on first use. A new workspace
// adopts an already authorized account and reloads products on every account change.
func (ws *Workspaces) Get(ctx context.Context, id string) *Workspace {
	ws.mu.Lock()
	if w, ok := ws.items[id]; ok {
		w.lastUsed = ws.now()
		ws.mu.Unlock()
		return w
	}

	var evicted *Workspace
	if len(ws.items) >= ws.max {
		evicted = ws.leastRecentlyUsed()
		delete(ws.items, evicted.ID)
	}

	session := wallet.NewSession(ws.provider)
	workflow := NewProductWorkflow(session, ws.contract, ws.uploader, ws.outbox)
	session.OnAccountChange(func(ctx context.Context, account string) {
		if account == "" {
			return
		}
		// failures are logged by LoadProducts
		_ = workflow.LoadProducts(ctx)
	})

	w := &Workspace{ID: id, Session: session, Workflow: workflow, lastUsed: ws.now()}
	ws.items[id] = w
	ws.mu.Unlock()

	if evicted != nil {
		ws.release(evicted, evictCapacity)
	}

	slog.Debug("Workspace created", slog.String("session_id", id))
	if err := session.CheckExisting(ctx); err != nil {
		slog.Error("Failed to restore wallet connection", slog.String("session_id", id), slog.Any("err", err))
	}
	return w
}

// must hold ws.mu and have at least one item
func (ws *Workspaces) leastRecentlyUsed() *Workspace {
	var oldest *Workspace
	for _, w := range ws.items {
		if oldest == nil || w.lastUsed.Before(oldest.lastUsed) {
			oldest = w
		}
	}
	return oldest
}

// Sweep releases every workspace unused for at least the idle timeout and
// returns how many were released.
func (ws *Workspaces) Sweep() int {
	ws.mu.Lock()
	cutoff := ws.now().Add(-ws.idleTimeout)
	var idle []*Workspace
	for id, w := range ws.items {
		if !w.lastUsed.After(cutoff) {
			idle = append(idle, w)
			delete(ws.items, id)
		}
	}
	ws.mu.Unlock()

	for _, w := range idle {
		ws.release(w, evictIdle)
	}
	return len(idle)
}

// Start sweeps idle workspaces until ctx is cancelled.
func (ws *Workspaces) Start(ctx context.Context) {
	interval := min(ws.idleTimeout, maxSweepInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("Workspace sweeper started", slog.Duration("idle_timeout", ws.idleTimeout), slog.Int("max", ws.max))
	for {
		select {
		case <-ctx.Done():
			slog.Info("Workspace sweeper stopped")
			return
		case <-ticker.C:
			if n := ws.Sweep(); n > 0 {
				slog.Debug("Idle workspaces released", slog.Int("count", n))
			}
		}
	}
}

func (ws *Workspaces) release(w *Workspace, reason string) {
	w.Session.Close()
	metrics.WorkspacesEvicted.WithLabelValues(reason).Inc()
	slog.Debug("Workspace released", slog.String("session_id", w.ID), slog.String("reason", reason))
}

// Len returns the number of live workspaces.
func (ws *Workspaces) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.items)
}

// Close stops account notifications for every workspace.
func (ws *Workspaces) Close() {
	ws.mu.Lock()
	items := ws.items
	ws.items = make(map[string]*Workspace)
	ws.mu.Unlock()

	for _, w := range items {
		w.Session.Close()
	}
}
