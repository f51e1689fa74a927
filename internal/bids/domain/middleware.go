package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Place(ctx context.Context, domain, bidder string, req PlaceRequest) error {
	start := time.Now()
	err := m.next.Place(ctx, domain, bidder, req)
	m.logger.Info("Place",
		"domain", domain,
		"bidder", bidder,
		"deposit", req.Deposit,
		"expiration", req.Expiration,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) Verify(ctx context.Context, domain string, claimedClear uint64, attestation []byte) error {
	start := time.Now()
	err := m.next.Verify(ctx, domain, claimedClear, attestation)
	m.logger.Info("Verify",
		"domain", domain,
		"clearAmount", claimedClear,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) Register(ctx context.Context, domain string) error {
	start := time.Now()
	err := m.next.Register(ctx, domain)
	m.logger.Info("Register",
		"domain", domain,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) Withdraw(ctx context.Context, domain, caller string) error {
	start := time.Now()
	err := m.next.Withdraw(ctx, domain, caller)
	m.logger.Info("Withdraw",
		"domain", domain,
		"caller", caller,
		"duration", time.Since(start),
		"error", err,
	)
	return err
}

func (m *loggingMiddleware) Get(ctx context.Context, domain string) (*Bid, error) {
	start := time.Now()
	bid, err := m.next.Get(ctx, domain)
	m.logger.Debug("Get",
		"domain", domain,
		"duration", time.Since(start),
		"error", err,
	)
	return bid, err
}

func (m *loggingMiddleware) GetSealed(ctx context.Context, domain string) ([]byte, error) {
	start := time.Now()
	sealed, err := m.next.GetSealed(ctx, domain)
	m.logger.Debug("GetSealed",
		"domain", domain,
		"size", len(sealed),
		"duration", time.Since(start),
		"error", err,
	)
	return sealed, err
}

func (m *loggingMiddleware) ListActive(ctx context.Context) ([]string, error) {
	start := time.Now()
	domains, err := m.next.ListActive(ctx)
	m.logger.Debug("ListActive",
		"count", len(domains),
		"duration", time.Since(start),
		"error", err,
	)
	return domains, err
}

func (m *loggingMiddleware) IsRegistered(ctx context.Context, domain string) (bool, error) {
	start := time.Now()
	registered, err := m.next.IsRegistered(ctx, domain)
	m.logger.Debug("IsRegistered",
		"domain", domain,
		"registered", registered,
		"duration", time.Since(start),
		"error", err,
	)
	return registered, err
}
