package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/ports"
)

// Ledger is an append-only feedback ledger kept in memory. When a path is
// given every rule is also appended to a JSON-lines file and reloaded on open.
type Ledger struct {
	mu    sync.RWMutex
	rules []domain.FeedbackRule
	path  string
	now   func() time.Time
}

var _ ports.FeedbackLedger = (*Ledger)(nil)

// NewLedger returns an empty ledger that lives only as long as the process.
func NewLedger() *Ledger {
	return &Ledger{now: time.Now}
}

// OpenLedger loads an existing JSON-lines ledger file, if any.
func OpenLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, now: time.Now}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var r domain.FeedbackRule
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("ledger file %s line %d: %w", path, line, err)
		}
		l.rules = append(l.rules, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	return l, nil
}

// Len is the number of rules recorded so far.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rules)
}

func (l *Ledger) Append(ctx context.Context, input domain.FeedbackInput) (domain.FeedbackRule, error) {
	status, err := domain.ParseFeedbackStatus(string(input.Status))
	if err != nil {
		return domain.FeedbackRule{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	created := l.now().UTC()
	if n := len(l.rules); n > 0 && !created.After(l.rules[n-1].CreatedAt) {
		created = l.rules[n-1].CreatedAt.Add(time.Microsecond)
	}
	rule := domain.FeedbackRule{
		ID:        uuid.New(),
		EntityID:  strings.TrimSpace(input.EntityID),
		Rule:      strings.TrimSpace(input.Rule),
		Status:    status,
		Note:      strings.TrimSpace(input.Note),
		CreatedAt: created,
	}

	if l.path != "" {
		if err := l.persist(rule); err != nil {
			return domain.FeedbackRule{}, err
		}
	}
	l.rules = append(l.rules, rule)
	return rule, nil
}

func (l *Ledger) persist(rule domain.FeedbackRule) error {
	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	if _, err := f.Write(append(raw, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("append ledger file: %w", err)
	}
	return f.Close()
}

func (l *Ledger) ListByEntity(ctx context.Context, entityID string) ([]domain.FeedbackRule, error) {
	got, err := l.ListByEntities(ctx, []string{entityID})
	if err != nil {
		return nil, err
	}
	return got[entityID], nil
}

func (l *Ledger) ListByEntities(ctx context.Context, entityIDs []string) (map[string][]domain.FeedbackRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		want[id] = true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string][]domain.FeedbackRule, len(entityIDs))
	for _, r := range l.rules {
		if want[r.EntityID] {
			out[r.EntityID] = append(out[r.EntityID], r)
		}
	}
	return out, nil
}
