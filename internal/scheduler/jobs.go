package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/mysphere/internal/dependencies/clock"
)

// TxPruner removes transaction records older than a cutoff
type TxPruner interface {
	PruneTxs(ctx context.Context, before time.Time) (int, error)
}

// HubCleaner drops stream hubs with no subscribers
type HubCleaner interface {
	CleanupEmptyHubs() int
}

// SessionCleaner forgets expired challenges and revocations
type SessionCleaner interface {
	CleanExpired() int
}

// PruneTxsJob deletes transaction records older than retention
func PruneTxsJob(spec string, store TxPruner, clk clock.Clock, retention time.Duration, logger *slog.Logger) Job {
	return Job{
		Name:    "prune_txs",
		Spec:    spec,
		Timeout: time.Minute,
		Run: func(ctx context.Context) error {
			removed, err := store.PruneTxs(ctx, clk.Now().Add(-retention))
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info("pruned transaction records", "removed", removed)
			}
			return nil
		},
	}
}

// CleanupHubsJob closes idle stream hubs
func CleanupHubsJob(spec string, hubs HubCleaner, logger *slog.Logger) Job {
	return Job{
		Name: "cleanup_hubs",
		Spec: spec,
		Run: func(ctx context.Context) error {
			if removed := hubs.CleanupEmptyHubs(); removed > 0 {
				logger.Debug("removed idle hubs", "removed", removed)
			}
			return nil
		},
	}
}

// CleanSessionsJob drops expired auth state
func CleanSessionsJob(spec string, sessions SessionCleaner, logger *slog.Logger) Job {
	return Job{
		Name: "clean_sessions",
		Spec: spec,
		Run: func(ctx context.Context) error {
			if removed := sessions.CleanExpired(); removed > 0 {
				logger.Debug("cleaned expired auth state", "removed", removed)
			}
			return nil
		},
	}
}
