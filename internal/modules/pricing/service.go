// README: Pricing service keeps the current cost rates and re-reads them periodically.
package pricing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type RateSource interface {
	CurrentRates(ctx context.Context) (Rates, error)
}

type Service struct {
	source  RateSource
	current atomic.Pointer[Rates]
	log     logrus.FieldLogger
}

// NewService starts from initial; a nil source keeps initial forever.
func NewService(source RateSource, initial Rates, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{source: source, log: log}
	if initial.Validate() != nil {
		initial = DefaultRates()
	}
	s.current.Store(&initial)
	return s
}

// Current returns a snapshot of the rates in effect.
func (s *Service) Current() Rates {
	return *s.current.Load()
}

// Refresh re-reads the source. Invalid or failed reads keep the previous rates.
func (s *Service) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	r, err := s.source.CurrentRates(ctx)
	if err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}
	if r.Currency == "" {
		r.Currency = s.Current().Currency
	}
	s.current.Store(&r)
	return nil
}

func (s *Service) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.WithError(err).Warn("pricing refresh failed, keeping previous rates")
			}
		}
	}
}
