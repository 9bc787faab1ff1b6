package services

import (
	"context"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const (
	ScopeCheckups = "checkups"
	ScopeAll      = "all"
)

type Health struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	JobsInFlight int    `json:"jobs_in_flight"`
}

type SystemService interface {
	// Reset deletes checkup data, or with ScopeAll the catalog and chat
	// log as well. Settings are always kept.
	Reset(ctx context.Context, scope string) error
	Health(ctx context.Context) Health
}

type systemService struct {
	*Deps
}

func NewSystemService(d *Deps) SystemService {
	return &systemService{Deps: d}
}

func (s *systemService) Reset(ctx context.Context, scope string) error {
	if scope == "" {
		scope = ScopeCheckups
	}
	if scope != ScopeCheckups && scope != ScopeAll {
		return utils.NewBadRequestError("Scope must be \"checkups\" or \"all\"")
	}
	if s.Queue.InFlight() > 0 {
		return utils.NewConflictError("Background jobs are still running; cancel them or wait before resetting")
	}

	var paths []string
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if scope == ScopeAll {
			paths, err = tx.ResetAll(ctx)
		} else {
			paths, err = tx.ResetCheckups(ctx)
		}
		return err
	})
	if err := s.wrap(err, "Failed to reset data", "scope", scope); err != nil {
		return err
	}
	s.removeObjects(ctx, paths)
	s.Logger.Warn("Data reset", "scope", scope, "files", len(paths))
	return nil
}

func (s *systemService) Health(ctx context.Context) Health {
	h := Health{Status: "ok", Database: "ok", JobsInFlight: s.Queue.InFlight()}
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.Error("Database ping failed", "error", err)
		h.Status, h.Database = "degraded", "unreachable"
	}
	return h
}
