package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SupplyRadar/internal/ports"
)

// fallbackNarrator calls the primary narrator first and the secondary when
// the primary fails. Each call gets its own deadline so a primary that times
// out leaves the secondary a full attempt.
type fallbackNarrator struct {
	primary   ports.Narrator
	secondary ports.Narrator
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFallbackNarrator returns a Narrator that tries primary, then secondary,
// each bounded by attemptTimeout when it is positive. Either may be nil; when
// both are nil it returns nil, and a lone narrator is returned unwrapped.
func NewFallbackNarrator(primary, secondary ports.Narrator, attemptTimeout time.Duration, logger *slog.Logger) ports.Narrator {
	switch {
	case primary == nil && secondary == nil:
		return nil
	case primary == nil:
		return secondary
	case secondary == nil:
		return primary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackNarrator{primary: primary, secondary: secondary, timeout: attemptTimeout, logger: logger}
}

func (f *fallbackNarrator) Narrate(ctx context.Context, req ports.NarrativeRequest) (ports.Narrative, error) {
	out, err := f.attempt(ctx, f.primary, req)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ports.Narrative{}, fmt.Errorf("llm: primary narrator failed: %w", ctxErr)
	}
	f.logger.Warn("llm: primary narrator failed, trying secondary",
		"error", err,
		"assessments", len(req.Assessments),
	)

	out, secondErr := f.attempt(ctx, f.secondary, req)
	if secondErr != nil {
		return ports.Narrative{}, fmt.Errorf("llm: both narrators failed: %w", secondErr)
	}
	return out, nil
}

func (f *fallbackNarrator) attempt(ctx context.Context, n ports.Narrator, req ports.NarrativeRequest) (ports.Narrative, error) {
	if f.timeout <= 0 {
		return n.Narrate(ctx, req)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return n.Narrate(attemptCtx, req)
}
