package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

// PipelineDeps wires the three stages and the optional post-run adapters.
type PipelineDeps struct {
	Screener    *Screener
	Correlator  *Correlator
	Synthesizer *Synthesizer
	Repository  ports.DecisionRepository
	Notifier    ports.Notifier
	Logger      *slog.Logger
}

// Pipeline is the controller: it runs Screening, Correlating and
// Synthesizing strictly in order, once, with no retries.
type Pipeline struct {
	screener    *Screener
	correlator  *Correlator
	synthesizer *Synthesizer
	repository  ports.DecisionRepository
	notifier    ports.Notifier
	logger      *slog.Logger
	newRunID    func() uuid.UUID
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		screener:    deps.Screener,
		correlator:  deps.Correlator,
		synthesizer: deps.Synthesizer,
		repository:  deps.Repository,
		notifier:    deps.Notifier,
		logger:      orDefault(deps.Logger),
		newRunID:    uuid.New,
	}
}

// Run executes one pass and returns the terminal state. On failure the error
// is a *StageError and the state carries no decision.
func (p *Pipeline) Run(ctx context.Context) (*State, error) {
	state := NewState(p.newRunID())
	log := p.logger.With("run_id", state.RunID().String())
	log.Info("pipeline started")

	// Screening
	if err := p.enter(ctx, state, PhaseScreening); err != nil {
		return state, err
	}
	entities, err := p.screener.Screen(ctx)
	if err != nil {
		return state, p.fail(ctx, log, state, PhaseScreening, err)
	}
	if err := state.SetInventoryRisks(entities); err != nil {
		return state, p.fail(ctx, log, state, PhaseScreening, err)
	}
	log.Info("screening complete", "at_risk", len(entities))

	// Correlating
	if err := p.enter(ctx, state, PhaseCorrelating); err != nil {
		return state, err
	}
	evidence, gaps, err := p.correlator.Correlate(ctx, entities)
	if err != nil {
		return state, p.fail(ctx, log, state, PhaseCorrelating, err)
	}
	if err := state.SetExternalRisks(evidence); err != nil {
		return state, p.fail(ctx, log, state, PhaseCorrelating, err)
	}
	log.Info("correlation complete", "entities", len(evidence), "gaps", len(gaps))

	// Synthesizing
	if err := p.enter(ctx, state, PhaseSynthesizing); err != nil {
		return state, err
	}
	decision, err := p.synthesizer.Synthesize(ctx, state.RunID(), entities, evidence, gaps)
	if err != nil {
		return state, p.fail(ctx, log, state, PhaseSynthesizing, err)
	}
	if err := ctx.Err(); err != nil {
		return state, p.fail(ctx, log, state, PhaseSynthesizing, fmt.Errorf("%w: %w", ErrCancelled, err))
	}
	if err := state.SetDecision(decision); err != nil {
		return state, p.fail(ctx, log, state, PhaseSynthesizing, err)
	}
	if err := state.advance(PhaseDone); err != nil {
		return state, p.fail(ctx, log, state, PhaseSynthesizing, err)
	}
	log.Info("pipeline done",
		"assessments", len(decision.Assessments),
		"escalations", len(decision.Escalations()),
		"degraded", len(decision.Degraded))

	p.publish(ctx, log, decision)
	return state, nil
}

// enter is the cooperative cancellation checkpoint at each stage boundary.
func (p *Pipeline) enter(ctx context.Context, state *State, phase Phase) error {
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, p.logger.With("run_id", state.RunID().String()), state, phase, fmt.Errorf("%w: %w", ErrCancelled, err))
	}
	if err := state.advance(phase); err != nil {
		stageErr := &StageError{Stage: phase, Kind: KindInternal, Err: err}
		state.fail(stageErr)
		return stageErr
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, log *slog.Logger, state *State, phase Phase, err error) error {
	stageErr := &StageError{Stage: phase, Kind: classify(ctx, err), Err: err}
	state.fail(stageErr)
	log.Error("pipeline failed", "stage", phase, "kind", stageErr.Kind, "error", err)
	return stageErr
}

// publish archives the decision and sends the escalation digest. Failures
// are logged and never change the decision.
func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, decision domain.Decision) {
	if p.repository != nil {
		if err := p.repository.SaveDecision(ctx, decision); err != nil {
			log.Warn("archive decision failed", "error", err)
		}
	}

	if p.notifier == nil {
		return
	}
	message := buildDigestMessage(decision)
	if message == "" {
		return
	}
	if err := p.notifier.PublishDigest(ctx, message); err != nil {
		log.Warn("publish digest failed", "error", err)
	}
}

func buildDigestMessage(decision domain.Decision) string {
	escalations := decision.Escalations()
	if len(escalations) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stockout risk digest (%s)\n\n", decision.GeneratedAt.Format("2006-01-02 15:04 MST"))
	for _, a := range escalations {
		fmt.Fprintf(&b, "- [%s] %s (%s)\nCover: %.2f weeks\n%s\n",
			a.Rating, a.Name, a.ProductID, a.WeeksCover, a.Action)
		if a.Rationale != "" {
			fmt.Fprintf(&b, "%s\n", a.Rationale)
		}
		if a.NeedsReview {
			b.WriteString("Needs review.\n")
		}
		b.WriteString("\n")
	}
	if decision.Summary != "" {
		b.WriteString(decision.Summary)
	}
	return strings.TrimSpace(b.String())
}
