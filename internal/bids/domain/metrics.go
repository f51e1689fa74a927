package domain

import (
	"context"

	"github.com/pendergraft/sealreg/internal/observability/metrics"
)

// MetricsMiddleware returns a service middleware that records bid lifecycle
// counters. Read accessors are covered by the HTTP-level metrics and are not
// counted here.
func MetricsMiddleware() func(Service) Service {
	return func(next Service) Service {
		return &metricsMiddleware{next: next}
	}
}

type metricsMiddleware struct {
	next Service
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *metricsMiddleware) Place(ctx context.Context, domain, bidder string, req PlaceRequest) error {
	err := m.next.Place(ctx, domain, bidder, req)
	metrics.BidPlace(outcome(err))
	return err
}

func (m *metricsMiddleware) Verify(ctx context.Context, domain string, claimedClear uint64, attestation []byte) error {
	err := m.next.Verify(ctx, domain, claimedClear, attestation)
	metrics.BidVerify(outcome(err))
	return err
}

func (m *metricsMiddleware) Register(ctx context.Context, domain string) error {
	err := m.next.Register(ctx, domain)
	metrics.DomainRegister(outcome(err))
	return err
}

func (m *metricsMiddleware) Withdraw(ctx context.Context, domain, caller string) error {
	err := m.next.Withdraw(ctx, domain, caller)
	metrics.BidWithdraw(outcome(err))
	return err
}

func (m *metricsMiddleware) Get(ctx context.Context, domain string) (*Bid, error) {
	return m.next.Get(ctx, domain)
}

func (m *metricsMiddleware) GetSealed(ctx context.Context, domain string) ([]byte, error) {
	return m.next.GetSealed(ctx, domain)
}

func (m *metricsMiddleware) ListActive(ctx context.Context) ([]string, error) {
	return m.next.ListActive(ctx)
}

func (m *metricsMiddleware) IsRegistered(ctx context.Context, domain string) (bool, error) {
	return m.next.IsRegistered(ctx, domain)
}
