package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"otp-auth-service/internal/util"
)

// Sweeper periodically removes expired challenges. It runs on its own
// low-frequency timer and holds no lock a live verification needs.
type Sweeper struct {
	ledger   *Ledger
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(ledger *Ledger, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is canceled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Challenge sweeper started", util.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Challenge sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.ledger.SweepExpired(ctx); err != nil {
				s.logger.Error("Challenge sweep failed", util.ErrorField(err))
			}
		}
	}
}
