package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type coverageStub struct {
	rows []domain.InventoryEntity
	err  error
}

func (s *coverageStub) AtRisk(ctx context.Context, threshold float64) ([]domain.InventoryEntity, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]domain.InventoryEntity(nil), s.rows...), nil
}

// signalStub answers queries from a fixed corpus with substring matching
// and leaves ranking to the correlator.
type signalStub struct {
	mu      sync.Mutex
	docs    []domain.Evidence
	failing map[string]bool
	block   bool
	slow    map[string]bool
	calls   []string
}

func (s *signalStub) Search(ctx context.Context, q string, limit int) ([]domain.Evidence, error) {
	s.mu.Lock()
	s.calls = append(s.calls, q)
	failing := s.failing[q] || s.failing["*"]
	slow := s.block || s.slow[q]
	s.mu.Unlock()

	if slow {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failing {
		return nil, errStoreDown
	}
	var out []domain.Evidence
	for _, d := range s.docs {
		if strings.Contains(strings.ToLower(d.Content), strings.ToLower(q)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *signalStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// nearestStub mimics a vector store: every query gets the same nearest
// rows, related or not.
type nearestStub struct {
	rows []domain.Evidence
}

func (s nearestStub) Search(ctx context.Context, q string, limit int) ([]domain.Evidence, error) {
	return append([]domain.Evidence(nil), s.rows...), nil
}

type pingingSignalStub struct {
	signalStub
	pingErr error
}

func (s *pingingSignalStub) Ping(ctx context.Context) error { return s.pingErr }

type ledgerStub struct {
	mu    sync.Mutex
	rules []domain.FeedbackRule
	err   error
	reads int
}

func (l *ledgerStub) Append(ctx context.Context, in domain.FeedbackInput) (domain.FeedbackRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := domain.FeedbackRule{
		ID:        uuid.New(),
		EntityID:  in.EntityID,
		Rule:      in.Rule,
		Status:    in.Status,
		Note:      in.Note,
		CreatedAt: time.Now().Add(time.Duration(len(l.rules)) * time.Millisecond),
	}
	l.rules = append(l.rules, r)
	return r, nil
}

func (l *ledgerStub) ListByEntity(ctx context.Context, id string) ([]domain.FeedbackRule, error) {
	got, err := l.ListByEntities(ctx, []string{id})
	return got[id], err
}

func (l *ledgerStub) ListByEntities(ctx context.Context, ids []string) (map[string][]domain.FeedbackRule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.err != nil {
		return nil, l.err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[string][]domain.FeedbackRule{}
	for _, r := range l.rules {
		if want[r.EntityID] {
			out[r.EntityID] = append(out[r.EntityID], r)
		}
	}
	return out, nil
}

type narratorStub struct {
	narrative ports.Narrative
	err       error
	calls     int
}

func (n *narratorStub) Narrate(ctx context.Context, req ports.NarrativeRequest) (ports.Narrative, error) {
	n.calls++
	return n.narrative, n.err
}

type notifierStub struct {
	messages []string
	err      error
}

func (n *notifierStub) PublishDigest(ctx context.Context, digest string) error {
	n.messages = append(n.messages, digest)
	return n.err
}

type repositoryStub struct {
	saved []domain.Decision
	err   error
}

func (r *repositoryStub) SaveDecision(ctx context.Context, d domain.Decision) error {
	r.saved = append(r.saved, d)
	return r.err
}

var (
	_ ports.CoverageStore      = (*coverageStub)(nil)
	_ ports.SignalStore        = (*signalStub)(nil)
	_ ports.SignalStore        = nearestStub{}
	_ ports.Pinger             = (*pingingSignalStub)(nil)
	_ ports.FeedbackLedger     = (*ledgerStub)(nil)
	_ ports.Narrator           = (*narratorStub)(nil)
	_ ports.Notifier           = (*notifierStub)(nil)
	_ ports.DecisionRepository = (*repositoryStub)(nil)
)

func inventory() []domain.InventoryEntity {
	return []domain.InventoryEntity{
		{ProductID: "P-100", Name: "Microcontroller X", StockLevel: 200, WeeklyUsage: 100, Supplier: "Shenzhen Components", Region: "Shenzhen"},
		{ProductID: "P-200", Name: "Steel Bracket", StockLevel: 2000, WeeklyUsage: 100, Supplier: "Ruhr Metals", Region: "Essen"},
		{ProductID: "P-300", Name: "Legacy Cable", StockLevel: 50, WeeklyUsage: 0, Supplier: "Old Wire", Region: "Ohio"},
		{ProductID: "P-400", Name: "Power Module", StockLevel: 300, WeeklyUsage: 100, Supplier: "Volt Corp", Region: "Penang"},
	}
}

func signals() []domain.Evidence {
	return []domain.Evidence{
		{Content: "Typhoon closes ports near Shenzhen; shipments delayed two weeks.", Relevance: 0.7},
		{Content: "Steel Bracket demand steady across Europe.", Relevance: 0.4},
	}
}
