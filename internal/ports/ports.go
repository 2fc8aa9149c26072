package ports

import (
	"context"
	"time"

	"SupplyRadar/internal/domain"
)

// CoverageStore returns inventory entities whose weeks of cover is below the
// threshold, ascending by cover. Zero-usage rows are never returned.
type CoverageStore interface {
	AtRisk(ctx context.Context, threshold float64) ([]domain.InventoryEntity, error)
}

// SignalStore runs a similarity search over external risk documents and
// returns at most limit snippets, most relevant first.
type SignalStore interface {
	Search(ctx context.Context, query string, limit int) ([]domain.Evidence, error)
}

// Pinger is implemented by stores that can report total unavailability
// before any per-entity work starts.
type Pinger interface {
	Ping(ctx context.Context) error
}

// FeedbackLedger is the append-only log of operator corrections.
type FeedbackLedger interface {
	Append(ctx context.Context, input domain.FeedbackInput) (domain.FeedbackRule, error)
	// ListByEntity returns every rule for the entity, oldest first.
	ListByEntity(ctx context.Context, entityID string) ([]domain.FeedbackRule, error)
	// ListByEntities reads one snapshot for several entities, oldest first per entity.
	ListByEntities(ctx context.Context, entityIDs []string) (map[string][]domain.FeedbackRule, error)
}

// NarrativeRequest is everything the language model sees for one run.
type NarrativeRequest struct {
	Assessments []domain.Assessment
	Feedback    map[string][]domain.FeedbackRule
}

// Narrative is the free-text part of a decision.
type Narrative struct {
	Summary    string
	Rationales map[string]string
}

// Narrator writes human-readable rationale for already-rated assessments.
// It must never change ratings.
type Narrator interface {
	Narrate(ctx context.Context, req NarrativeRequest) (Narrative, error)
}

// Embedder turns query text into a vector for the semantic signal store.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Notifier streams escalation digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// DecisionRepository archives final decisions for audit.
type DecisionRepository interface {
	SaveDecision(ctx context.Context, decision domain.Decision) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
