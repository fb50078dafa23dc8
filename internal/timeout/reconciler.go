package timeout

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/pkg/log"
)

// Lifecycle is the slice of the lifecycle engine the reconciler drives.
// TimeOut is the only edge it may take.
type Lifecycle interface {
	TimeOut(ctx context.Context, roomID int64) error
}

// Config holds reconciler timing parameters.
type Config struct {
	// SweepInterval is how often the reconciler runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// ResponseWindow is how long a pending room may go unanswered.
	ResponseWindow time.Duration `mapstructure:"response_window"`
	// SkewTolerance widens the persistence pre-filter and tightens the
	// restart fallback, absorbing drift between the process clock and the
	// database clock.
	SkewTolerance time.Duration `mapstructure:"skew_tolerance"`
}

// Reconciler periodically sweeps pending rooms and drives the ones that have
// exceeded the response window into TIMED_OUT. The in-memory registry entry
// is authoritative; the persisted creation timestamp is only a restart
// fallback.
type Reconciler struct {
	repo     repository.RoomRepository
	registry *Registry
	engine   Lifecycle
	cfg      Config

	sweeping atomic.Bool
	now      func() time.Time
}

// NewReconciler creates a reconciler. Zero config fields get defaults
// (5s sweep, 30s window, 20s skew tolerance).
func NewReconciler(repo repository.RoomRepository, registry *Registry, engine Lifecycle, cfg Config) *Reconciler {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	if cfg.ResponseWindow <= 0 {
		cfg.ResponseWindow = 30 * time.Second
	}
	if cfg.SkewTolerance <= 0 {
		cfg.SkewTolerance = 20 * time.Second
	}
	return &Reconciler{
		repo:     repo,
		registry: registry,
		engine:   engine,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled. There is no client-initiated
// cancellation; the reconciler runs for the lifetime of the process.
func (r *Reconciler) Run(ctx context.Context) {
	l := log.L()
	l.Info().
		Dur("sweep_interval", r.cfg.SweepInterval).
		Dur("response_window", r.cfg.ResponseWindow).
		Msg("timeout reconciler started")

	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("timeout reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Overlapping sweeps are skipped rather
// than queued: if a previous pass is still running this call returns
// immediately.
func (r *Reconciler) Sweep(ctx context.Context) {
	if !r.sweeping.CompareAndSwap(false, true) {
		log.L().Debug().Msg("previous sweep still running, skipping")
		return
	}
	defer r.sweeping.Store(false)

	l := log.L()
	now := r.now()

	// Defensive pre-filter against the persistence clock. Widened by the
	// skew tolerance so a database clock running ahead cannot hide a room
	// that is due by the authoritative in-memory reading.
	threshold := now.Add(-(r.cfg.ResponseWindow - r.cfg.SkewTolerance))
	candidates, err := r.repo.FindPendingOlderThan(ctx, threshold)
	if err != nil {
		l.Error().Err(err).Msg("failed to query pending rooms, will retry next sweep")
		return
	}

	for i := range candidates {
		room := &candidates[i]
		r.reconcile(ctx, room, now)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, room *domain.Room, now time.Time) {
	l := log.L().With().
		Int64(log.FieldRoomID, room.ID).
		Str(log.FieldRoomUUID, room.UUID).
		Logger()

	registeredAt, tracked := r.registry.RegisteredAt(room.ID)
	if tracked {
		elapsed := now.Sub(registeredAt)
		if elapsed < r.cfg.ResponseWindow {
			// Not yet due by the authoritative clock.
			return
		}
		l.Warn().
			Dur("elapsed", elapsed).
			Time("registered_at", registeredAt).
			Time("persisted_created_at", room.CreatedAt).
			Msg("pending consultation exceeded response window")
	} else {
		// No memory entry: the process restarted since the room was
		// created. The persisted timestamp is less trustworthy, so require
		// the window plus the skew tolerance before acting.
		dbElapsed := now.Sub(room.CreatedAt)
		if dbElapsed < r.cfg.ResponseWindow+r.cfg.SkewTolerance {
			return
		}
		l.Warn().
			Dur("db_elapsed", dbElapsed).
			Time("persisted_created_at", room.CreatedAt).
			Msg("untracked pending consultation exceeded response window, using persisted timestamp fallback")
	}

	if err := r.engine.TimeOut(ctx, room.ID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// An explicit transition won the race; nothing to do.
			r.registry.Unregister(room.ID)
			l.Debug().Err(err).Msg("room already transitioned, skipping timeout")
			return
		}
		// Recoverable: the room stays pending and the next sweep retries.
		l.Error().Err(err).Msg("failed to time out consultation")
		return
	}
}
