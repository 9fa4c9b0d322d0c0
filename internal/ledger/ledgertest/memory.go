// Package ledgertest oferece um ledger.Store em memória para testes de serviços.
// Atomically serializa por usuário com um mutex, como o FOR UPDATE do Postgres.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
)

type Memory struct {
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	entries []ledger.Entry
	refs    map[string]struct{}
	seq     int64
}

func NewMemory() *Memory {
	return &Memory{locks: map[string]*sync.Mutex{}, refs: map[string]struct{}{}}
}

func (m *Memory) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Seed credita um depósito direto, fora de qualquer serviço.
func (m *Memory) Seed(userID string, amount int64) {
	_ = m.Atomically(context.Background(), userID, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Append(ctx, ledger.Entry{Kind: ledger.KindDeposit, AmountMinor: amount, ReferenceID: "seed:" + uuid.NewString()})
		return err
	})
}

func (m *Memory) Atomically(ctx context.Context, userID string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if userID == "" {
		return apperr.InvalidInput.With("user id required")
	}
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	t := &memTx{m: m, userID: userID}
	if err := fn(ctx, t); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range t.staged {
		if _, dup := m.refs[e.ReferenceID]; dup {
			return apperr.DuplicateReference.With("reference %s already recorded", e.ReferenceID)
		}
	}
	for _, e := range t.staged {
		m.seq++
		e.Seq = m.seq
		m.refs[e.ReferenceID] = struct{}{}
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *Memory) EntriesFor(_ context.Context, userID string, after int64, limit int) (ledger.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page := ledger.Page{Next: after}
	for _, e := range m.entries {
		if e.UserID != userID || e.Seq <= after {
			continue
		}
		if limit > 0 && len(page.Entries) == limit {
			break
		}
		page.Entries = append(page.Entries, e)
		page.Next = e.Seq
	}
	sort.Slice(page.Entries, func(i, j int) bool { return page.Entries[i].Seq < page.Entries[j].Seq })
	return page, nil
}

func (m *Memory) CurrentBalance(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(userID), nil
}

// All devolve uma cópia de todas as entradas do usuário.
func (m *Memory) All(userID string) []ledger.Entry {
	p, _ := m.EntriesFor(context.Background(), userID, 0, 0)
	return p.Entries
}

func (m *Memory) sumLocked(userID string) int64 {
	var sum int64
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += e.AmountMinor
		}
	}
	return sum
}

type memTx struct {
	m      *Memory
	userID string
	staged []ledger.Entry
}

func (t *memTx) UserID() string          { return t.userID }
func (t *memTx) Queryable() db.Queryable { return nil }

func (t *memTx) Balance(context.Context) (int64, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.sumLocked(t.userID) + ledger.Fold(t.staged), nil
}

func (t *memTx) HasReference(_ context.Context, ref string) (bool, error) {
	t.m.mu.Lock()
	_, ok := t.m.refs[ref]
	t.m.mu.Unlock()
	if ok {
		return true, nil
	}
	for _, e := range t.staged {
		if e.ReferenceID == ref {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) Append(ctx context.Context, entries ...ledger.Entry) ([]ledger.Entry, error) {
	out := make([]ledger.Entry, 0, len(entries))
	for _, e := range entries {
		if e.UserID == "" {
			e.UserID = t.userID
		}
		if e.UserID != t.userID {
			return nil, apperr.InvalidInput.With("entry for %s appended under %s lock", e.UserID, t.userID)
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if dup, _ := t.HasReference(ctx, e.ReferenceID); dup {
			return nil, apperr.DuplicateReference.With("reference %s already recorded", e.ReferenceID)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.CreatedAt = time.Now()
		t.staged = append(t.staged, e)
		out = append(out, e)
	}
	return out, nil
}
