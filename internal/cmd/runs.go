package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jimezsa/jobops/internal/history"
	"github.com/jimezsa/jobops/internal/runlock"
)

// acquireRunLock takes the per-kind lock in the config directory. Without a
// config directory no lock is taken.
func acquireRunLock(ctx *Context, kind string) (*runlock.Lock, error) {
	if strings.TrimSpace(ctx.ConfigDir) == "" {
		return nil, nil
	}
	lock, err := runlock.Acquire(ctx.ConfigDir, kind)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		return nil, err
	}
	ctx.Logger.Debug().Str("path", lock.Path()).Msg("run lock acquired")
	return lock, nil
}

func releaseRunLock(ctx *Context, lock *runlock.Lock) {
	if err := lock.Release(); err != nil {
		ctx.Logger.Warn().Err(err).Msg("release run lock")
	}
}

// recordRun stores run in the history database when one is configured.
// Failures are reported as warnings; they never fail the command.
func recordRun(ctx *Context, run history.Run) string {
	if strings.TrimSpace(ctx.HistoryDB) == "" {
		return ""
	}
	store, err := history.Open(ctx.HistoryDB)
	if err != nil {
		ctx.UI.Warnf("history: %v", err)
		return ""
	}
	defer store.Close()

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := store.Record(writeCtx, run)
	if err != nil {
		ctx.UI.Warnf("history: %v", err)
		return ""
	}
	ctx.Logger.Debug().Str("run_id", id).Str("kind", run.Kind).Str("db", ctx.HistoryDB).Msg("run recorded")
	return id
}
