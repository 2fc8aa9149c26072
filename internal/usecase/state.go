package usecase

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"SupplyRadar/internal/domain"
)

// Phase is the position of a run in the forward-only state machine.
type Phase string

const (
	PhaseIdle         Phase = "Idle"
	PhaseScreening    Phase = "Screening"
	PhaseCorrelating  Phase = "Correlating"
	PhaseSynthesizing Phase = "Synthesizing"
	PhaseDone         Phase = "Done"
	PhaseFailed       Phase = "Failed"
)

var nextPhase = map[Phase]Phase{
	PhaseIdle:         PhaseScreening,
	PhaseScreening:    PhaseCorrelating,
	PhaseCorrelating:  PhaseSynthesizing,
	PhaseSynthesizing: PhaseDone,
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// State is the fixed-shape record shared by the stages of one run.
// Every stage field is write-once.
type State struct {
	mu sync.RWMutex

	runID uuid.UUID
	phase Phase

	inventoryRisks    []domain.InventoryEntity
	inventoryRisksSet bool

	externalRisks    map[string][]domain.Evidence
	externalRisksSet bool

	decision    domain.Decision
	decisionSet bool

	err *StageError
}

// NewState returns an Idle state for the given run.
func NewState(runID uuid.UUID) *State {
	return &State{runID: runID, phase: PhaseIdle}
}

func (s *State) RunID() uuid.UUID { return s.runID }

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Err returns the failure that moved the run to Failed, if any.
func (s *State) Err() *StageError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// InventoryRisks returns the Stage 1 output in screening order.
func (s *State) InventoryRisks() []domain.InventoryEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.InventoryEntity(nil), s.inventoryRisks...)
}

// ExternalRisks returns the Stage 2 output keyed by product id.
func (s *State) ExternalRisks() map[string][]domain.Evidence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]domain.Evidence, len(s.externalRisks))
	for id, ev := range s.externalRisks {
		out[id] = append([]domain.Evidence(nil), ev...)
	}
	return out
}

// Decision returns the Stage 3 output; ok is false until it is written.
func (s *State) Decision() (domain.Decision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision, s.decisionSet
}

func (s *State) SetInventoryRisks(entities []domain.InventoryEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inventoryRisksSet {
		return fmt.Errorf("inventory risks: %w", ErrFieldAlreadySet)
	}
	s.inventoryRisks = append([]domain.InventoryEntity(nil), entities...)
	s.inventoryRisksSet = true
	return nil
}

func (s *State) SetExternalRisks(evidence map[string][]domain.Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.externalRisksSet {
		return fmt.Errorf("external risks: %w", ErrFieldAlreadySet)
	}
	s.externalRisks = make(map[string][]domain.Evidence, len(evidence))
	for id, ev := range evidence {
		s.externalRisks[id] = append([]domain.Evidence(nil), ev...)
	}
	s.externalRisksSet = true
	return nil
}

func (s *State) SetDecision(decision domain.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decisionSet {
		return fmt.Errorf("final decision: %w", ErrFieldAlreadySet)
	}
	s.decision = decision
	s.decisionSet = true
	return nil
}

// advance moves one step forward; skipping or going back is rejected.
func (s *State) advance(to Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nextPhase[s.phase] != to {
		return fmt.Errorf("illegal transition %s -> %s", s.phase, to)
	}
	s.phase = to
	return nil
}

func (s *State) fail(err *StageError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.phase = PhaseFailed
	s.err = err
}
