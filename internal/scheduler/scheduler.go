package scheduler

import (
	"context"
	"destored/internal/config"
	"destored/internal/credentials"
	"destored/internal/model"
	"destored/internal/session"
	"destored/internal/token"
	"log/slog"
	"sync"
	"time"
)

type Outcome string

const (
	// OutcomeEmpty: there is no session to keep alive.
	OutcomeEmpty Outcome = "empty"
	// OutcomeIdle: the token is far enough from expiry.
	OutcomeIdle Outcome = "idle"
	// OutcomeRefreshed: a new access token was stored.
	OutcomeRefreshed Outcome = "refreshed"
	// OutcomeStale: the session changed while refreshing, result dropped.
	OutcomeStale Outcome = "stale"
	// OutcomeCancelled: the tick was interrupted by deactivation.
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeLoggedOut: refresh was impossible and the session was torn down.
	OutcomeLoggedOut Outcome = "logged_out"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
}

// Scheduler refreshes the access token before it expires while a session is active.
type Scheduler struct {
	holder    *session.Holder
	store     *credentials.Store
	refresher TokenRefresher
	interval  time.Duration
	threshold time.Duration
	policy    string
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(holder *session.Holder, store *credentials.Store, refresher TokenRefresher, cfg config.RefreshConfig, log *slog.Logger) *Scheduler {
	return &Scheduler{
		holder:    holder,
		store:     store,
		refresher: refresher,
		interval:  cfg.Interval,
		threshold: cfg.Threshold,
		policy:    cfg.Undecodable,
		log:       log.With(slog.String("component", "scheduler")),
	}
}

// Activate starts the periodic check, replacing any running one.
// The first check runs immediately.
func (s *Scheduler) Activate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.loop(loopCtx, done)
	s.log.Debug("activated", slog.Duration("interval", s.interval))
}

// Deactivate cancels the timer and any in-flight check. Safe to call when inactive.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.log.Debug("deactivated")
	}
	s.stopLocked()
}

func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.done = nil
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		switch s.Tick(ctx) {
		case OutcomeEmpty, OutcomeLoggedOut:
			s.finish(done)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finish marks the scheduler inactive if done still belongs to the current loop.
func (s *Scheduler) finish(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == done {
		s.stopLocked()
		s.log.Debug("deactivated, no session")
	}
}

// Tick runs one expiry check and refreshes when needed.
func (s *Scheduler) Tick(ctx context.Context) Outcome {
	if ctx.Err() != nil {
		return OutcomeCancelled
	}

	current, gen := s.holder.Snapshot()
	if current.Empty() {
		return OutcomeEmpty
	}

	ttl, err := token.TimeToExpiry(current.AccessToken)
	switch {
	case err != nil && s.policy == config.UndecodableTrust:
		return OutcomeIdle
	case err != nil:
		s.log.Info("access token expiry undecodable, refreshing")
	case ttl > s.threshold:
		return OutcomeIdle
	default:
		s.log.Info("access token close to expiry, refreshing", slog.Duration("ttl", ttl))
	}

	refreshToken := current.RefreshToken
	if refreshToken == "" {
		refreshToken = s.store.RefreshToken(ctx)
	}
	if refreshToken == "" {
		return s.logout(ctx, gen, "no refresh token")
	}

	pair, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		s.log.Warn("refresh failed", slog.String("error", err.Error()))
		return s.logout(ctx, gen, "refresh failed")
	}

	ok, err := s.holder.Update(gen, func(next *model.Session) error {
		if err := s.store.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			return err
		}
		next.AccessToken = pair.AccessToken
		if pair.RefreshToken != "" {
			next.RefreshToken = pair.RefreshToken
		}
		return nil
	})
	if !ok {
		s.log.Debug("session changed during refresh, dropping result")
		return OutcomeStale
	}
	if err != nil {
		s.log.Error("failed to persist refreshed tokens", slog.String("error", err.Error()))
		return s.logout(ctx, gen, "persist failed")
	}

	return OutcomeRefreshed
}

func (s *Scheduler) logout(ctx context.Context, gen uint64, reason string) Outcome {
	ctx = context.WithoutCancel(ctx)

	cleared, err := s.holder.ClearIf(gen, reason, func() error {
		return s.store.Clear(ctx)
	})
	if !cleared {
		return OutcomeStale
	}
	if err != nil {
		s.log.Error("failed to clear credentials", slog.String("error", err.Error()))
	}

	s.log.Warn("session ended", slog.String("reason", reason))
	return OutcomeLoggedOut
}

// Watch keeps the scheduler in step with the session until ctx is done:
// a new session restarts it, an ended one stops it.
func (s *Scheduler) Watch(ctx context.Context) {
	events, unsubscribe := s.holder.Subscribe()
	defer unsubscribe()
	defer s.Deactivate()

	s.reconcile(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case session.EventStarted:
				s.reconcile(ctx, true)
			case session.EventEnded:
				s.reconcile(ctx, false)
			}
		}
	}
}

func (s *Scheduler) reconcile(ctx context.Context, restart bool) {
	current, _ := s.holder.Snapshot()
	switch {
	case current.Empty():
		s.Deactivate()
	case restart || !s.Active():
		s.Activate(ctx)
	}
}
