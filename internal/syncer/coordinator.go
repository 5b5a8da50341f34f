package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dummy-intern104/invex-ai/internal/domain"
	"github.com/dummy-intern104/invex-ai/internal/service"
	"github.com/dummy-intern104/invex-ai/internal/state"
	"github.com/dummy-intern104/invex-ai/internal/store"
)

var (
	ErrNotBound          = errors.New("sync coordinator has no identity")
	ErrNoPendingConflict = errors.New("no pending conflict")
)

type Outcome string

const (
	OutcomeDisabled   Outcome = "disabled"
	OutcomeEcho       Outcome = "echo"
	OutcomeNoChange   Outcome = "no_change"
	OutcomeApplied    Outcome = "applied"
	OutcomeDeclined   Outcome = "declined"
	OutcomeTimedOut   Outcome = "timed_out"
	OutcomeSuperseded Outcome = "superseded"
)

const (
	DefaultDebounce       = 300 * time.Millisecond
	DefaultEchoWindow     = 5 * time.Second
	DefaultConfirmTimeout = 30 * time.Second
	DefaultSaveTimeout    = 15 * time.Second
)

type Options struct {
	Debounce       time.Duration
	EchoWindow     time.Duration
	ConfirmTimeout time.Duration
	SaveTimeout    time.Duration
	AutoSync       bool
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.EchoWindow <= 0 {
		o.EchoWindow = DefaultEchoWindow
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = DefaultSaveTimeout
	}
	return o
}

type expiryInvalidator interface {
	InvalidateExpiries(ctx context.Context, identity string) error
}

// Coordinator pushes local changes to the gateway after a quiet period and
// decides what to do with snapshots arriving from other devices.
type Coordinator struct {
	store    *state.Store
	gateway  store.Gateway
	notifier service.Notifier
	opts     Options
	now      func() time.Time

	conflicts chan *Conflict

	mu             sync.Mutex
	identity       string
	sessionCtx     context.Context
	autoSync       bool
	lastLocalWrite time.Time
	dirty          bool
	timer          *time.Timer
	saving         bool
	generation     uint64
	pending        *Conflict
}

func New(st *state.Store, gateway store.Gateway, notifier service.Notifier, opts Options) *Coordinator {
	if notifier == nil {
		notifier = service.LogNotifier{}
	}
	opts = opts.withDefaults()
	c := &Coordinator{
		store:      st,
		gateway:    gateway,
		notifier:   notifier,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
		conflicts:  make(chan *Conflict, 8),
		sessionCtx: context.Background(),
		autoSync:   opts.AutoSync,
	}
	st.OnChange(c.MarkDirty)
	return c
}

// Bind attaches the coordinator to an identity. ctx must carry the matching
// auth session; its values are kept for background saves.
func (c *Coordinator) Bind(ctx context.Context, identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
	c.generation++
	c.identity = identity
	c.sessionCtx = context.WithoutCancel(ctx)
	c.dirty = false
	c.saving = false
}

// Unbind detaches the identity. Pending saves are dropped and an unanswered
// conflict is declined.
func (c *Coordinator) Unbind() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.generation++
	c.identity = ""
	c.sessionCtx = context.Background()
	c.dirty = false
	c.saving = false
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	if pending != nil {
		pending.Decline()
	}
}

func (c *Coordinator) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Coordinator) SetAutoSync(enabled bool) {
	c.mu.Lock()
	c.autoSync = enabled
	c.mu.Unlock()
	log.Printf("[syncer] auto-sync enabled=%t", enabled)
}

func (c *Coordinator) AutoSyncEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSync
}

func (c *Coordinator) LastLocalWrite() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLocalWrite
}

// MarkDirty records a local mutation and schedules a save.
func (c *Coordinator) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastLocalWrite = c.now()
	if c.identity == "" {
		return
	}
	c.dirty = true
	c.armLocked()
}

func (c *Coordinator) armLocked() {
	if c.timer != nil || c.saving {
		return
	}
	gen := c.generation
	c.timer = time.AfterFunc(c.opts.Debounce, func() { c.flush(gen) })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Flush saves immediately if there are unsaved changes and no save is running.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	c.stopTimerLocked()
	gen := c.generation
	c.mu.Unlock()
	c.flush(gen)
}

func (c *Coordinator) flush(gen uint64) {
	c.mu.Lock()
	if gen != c.generation || c.identity == "" {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if !c.dirty || c.saving {
		c.mu.Unlock()
		return
	}
	c.dirty = false
	c.saving = true
	identity := c.identity
	sessionCtx := c.sessionCtx
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(sessionCtx, c.opts.SaveTimeout)
	err := c.gateway.Save(ctx, identity, c.store.Snapshot())
	cancel()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		log.Printf("[syncer] discarding save result for %s after logout", identity)
		return
	}
	c.saving = false
	if c.dirty {
		c.armLocked()
	}
	c.mu.Unlock()

	if err != nil {
		log.Printf("[syncer] WARN: save for %s failed: %v", identity, err)
		c.notifier.Failure(sessionCtx, "sync", err)
		return
	}
	log.Printf("[syncer] saved snapshot for %s", identity)
}

// Conflicts delivers every raised conflict. Delivery never blocks; a reader
// that falls behind can still find the live one via PendingConflict.
func (c *Coordinator) Conflicts() <-chan *Conflict {
	return c.conflicts
}

func (c *Coordinator) PendingConflict() (*Conflict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.pending != nil
}

// ResolveConflict answers the pending conflict with the given id.
func (c *Coordinator) ResolveConflict(id string, accept bool) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil || pending.ID != id {
		return ErrNoPendingConflict
	}
	var won bool
	if accept {
		won = pending.Accept()
	} else {
		won = pending.Decline()
	}
	if !won {
		return ErrNoPendingConflict
	}
	return nil
}

// SupersedePending drops an unanswered conflict in favour of a newer event.
func (c *Coordinator) SupersedePending() {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending != nil {
		pending.resolve(DecisionSuperseded)
	}
}

// HandleRemote decides whether a remote snapshot replaces local state. It
// blocks while a conflict waits for an answer.
func (c *Coordinator) HandleRemote(ctx context.Context, ev domain.ChangeEvent) Outcome {
	arrival := c.now()

	c.mu.Lock()
	if !c.autoSync || c.identity == "" {
		c.mu.Unlock()
		log.Printf("[syncer] auto-sync disabled, ignoring remote update")
		return OutcomeDisabled
	}
	if ev.Payload == nil {
		c.mu.Unlock()
		return OutcomeNoChange
	}
	if c.isEchoLocked(ev.ServerTimestamp, arrival) {
		c.mu.Unlock()
		log.Printf("[syncer] ignoring echo of local write")
		return OutcomeEcho
	}
	identity := c.identity
	gen := c.generation
	c.mu.Unlock()

	remote := ev.Payload.Normalize()
	local := c.store.Snapshot()
	if local.Equal(remote) {
		return OutcomeNoChange
	}

	conflict := newConflict(identity, local, remote, ev.ServerTimestamp, arrival)
	c.mu.Lock()
	previous := c.pending
	c.pending = conflict
	c.mu.Unlock()
	if previous != nil {
		previous.resolve(DecisionSuperseded)
	}
	select {
	case c.conflicts <- conflict:
	default:
		log.Printf("[syncer] WARN: conflict queue full, %s only available as pending", conflict.ID)
	}
	log.Printf("[syncer] remote update differs in %v, awaiting confirmation", conflict.Changed)

	timeout := time.NewTimer(c.opts.ConfirmTimeout)
	defer timeout.Stop()
	select {
	case <-conflict.Done():
	case <-timeout.C:
		conflict.resolve(DecisionTimedOut)
	case <-ctx.Done():
		conflict.resolve(DecisionDeclined)
	}

	c.mu.Lock()
	if c.pending == conflict {
		c.pending = nil
	}
	bound := gen == c.generation
	c.mu.Unlock()

	switch conflict.Decision() {
	case DecisionAccepted:
		if !bound {
			return OutcomeDeclined
		}
		c.apply(ctx, remote)
		return OutcomeApplied
	case DecisionTimedOut:
		log.Printf("[syncer] conflict %s timed out, keeping local state", conflict.ID)
		return OutcomeTimedOut
	case DecisionSuperseded:
		return OutcomeSuperseded
	default:
		log.Printf("[syncer] conflict %s declined, keeping local state", conflict.ID)
		return OutcomeDeclined
	}
}

func (c *Coordinator) isEchoLocked(serverTS time.Time, arrival time.Time) bool {
	if c.lastLocalWrite.IsZero() {
		return false
	}
	ref := serverTS
	if ref.IsZero() {
		ref = arrival
	}
	return within(ref, c.lastLocalWrite, c.opts.EchoWindow)
}

func within(a, b time.Time, window time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < window
}

func (c *Coordinator) apply(ctx context.Context, remote domain.Snapshot) {
	c.store.Restore(remote)
	c.mu.Lock()
	if c.saving {
		// The running save may carry the pre-restore snapshot and would
		// overwrite the remote copy; push the restored state once it lands.
		c.dirty = true
	} else {
		c.dirty = false
		c.stopTimerLocked()
	}
	c.mu.Unlock()
	c.notifier.Success(ctx, "sync", "applied remote changes")
}

// RefreshExpiries re-reads expiry records, bypassing any cache.
func (c *Coordinator) RefreshExpiries(ctx context.Context) error {
	c.mu.Lock()
	identity := c.identity
	sessionCtx := c.sessionCtx
	c.mu.Unlock()
	if identity == "" {
		return ErrNotBound
	}

	reqCtx, cancel := mergeDeadline(ctx, sessionCtx)
	defer cancel()
	if inv, ok := c.gateway.(expiryInvalidator); ok {
		if err := inv.InvalidateExpiries(reqCtx, identity); err != nil {
			log.Printf("[syncer] WARN: invalidate expiries: %v", err)
		}
	}
	expiries, err := c.gateway.LoadExpiries(reqCtx, identity)
	if err != nil {
		log.Printf("[syncer] WARN: refresh expiries for %s: %v", identity, err)
		return fmt.Errorf("refresh expiries: %w", err)
	}
	if c.Identity() != identity {
		return ErrNotBound
	}
	c.store.SetExpiries(expiries)
	return nil
}

// mergeDeadline returns the session context bounded by ctx's cancellation.
func mergeDeadline(ctx context.Context, sessionCtx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(sessionCtx)
	stop := context.AfterFunc(ctx, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
