package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pendergraft/sealreg/pkg/client"
)

// Registry is the subset of the API client the runner needs.
type Registry interface {
	Announcements(ctx context.Context, sinceSeq int64, limit int) (*client.Feed, error)
	Verify(ctx context.Context, domain string, req client.VerifyRequest) error
}

// Runner polls the registry's announcement feed and submits an attestation
// for every sealed amount it can open. It keeps a sequence cursor so a
// restarted oracle resumes where it left off instead of re-reading the feed
// from the beginning.
type Runner struct {
	oracle   *Oracle
	registry Registry
	logger   *slog.Logger
	interval time.Duration
	cursor   int64
}

// NewRunner creates a runner starting at the given feed cursor.
func NewRunner(o *Oracle, registry Registry, logger *slog.Logger, interval time.Duration, sinceSeq int64) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		oracle:   o,
		registry: registry,
		logger:   logger,
		interval: interval,
		cursor:   sinceSeq,
	}
}

// Cursor returns the current feed position.
func (r *Runner) Cursor() int64 {
	return r.cursor
}

// Run polls until the context is canceled. Transient errors are logged and
// retried on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Poll(ctx); err != nil {
			r.logger.Error("polling announcement feed", "error", err, "cursor", r.cursor)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll drains the feed from the current cursor, attesting every announcement
// it can. The cursor only advances past an announcement once it has been
// handled, so a failed submission is retried on the next poll.
func (r *Runner) Poll(ctx context.Context) error {
	for {
		feed, err := r.registry.Announcements(ctx, r.cursor, 0)
		if err != nil {
			return err
		}
		if len(feed.Announcements) == 0 {
			return nil
		}

		for _, ann := range feed.Announcements {
			if err := r.handle(ctx, ann); err != nil {
				return err
			}
			r.cursor = ann.Seq
		}
	}
}

func (r *Runner) handle(ctx context.Context, ann client.Announcement) error {
	clear, attestation, err := r.oracle.Attest(ann.Sealed)
	if err != nil {
		// A blob sealed to a different oracle or instance. Skip it; it will
		// never become decryptable.
		r.logger.Warn("skipping undecryptable announcement", "domain", ann.Domain, "seq", ann.Seq, "error", err)
		return nil
	}

	err = r.registry.Verify(ctx, ann.Domain, client.VerifyRequest{
		ClearAmount: clear,
		Attestation: attestation,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case "ALREADY_VERIFIED", "BID_EXPIRED", "NOT_FOUND", "DOMAIN_REGISTERED":
				// The bid moved on without us. Nothing to retry.
				r.logger.Debug("attestation not needed", "domain", ann.Domain, "code", apiErr.Code)
				return nil
			}
		}
		return err
	}

	r.logger.Info("attested bid", "domain", ann.Domain, "seq", ann.Seq)
	return nil
}
