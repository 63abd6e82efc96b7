package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/config"
	"github.com/dokzlo13/sensehatd/internal/ledger"
)

// LedgerService prunes old ledger entries.
type LedgerService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{cfg: cfg, ledger: l}
}

// Start runs the cleanup loop in the background.
func (s *LedgerService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *LedgerService) run(ctx context.Context) {
	interval := s.cfg.Ledger.CleanupInterval.Duration()
	if interval <= 0 {
		return
	}
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour

	s.cleanup(retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(retention)
		}
	}
}

func (s *LedgerService) cleanup(retention time.Duration) {
	n, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Ledger cleanup failed")
		return
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Dur("retention", retention).Msg("Pruned ledger entries")
	}
}
