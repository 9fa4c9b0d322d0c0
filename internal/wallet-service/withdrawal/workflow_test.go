package withdrawal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/ledger/ledgertest"
	"github.com/radieske/sports-bet-ledger/internal/shared/db"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type fakeRepo struct {
	mu sync.Mutex
	ws map[string]repo.Withdrawal
}

func (f *fakeRepo) InsertWithdrawal(_ context.Context, _ db.Queryable, w *repo.Withdrawal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.ID = uuid.NewString()
	w.Status = repo.WithdrawalPending
	w.RequestedAt = time.Now()
	f.ws[w.ID] = *w
	return nil
}

func (f *fakeRepo) GetWithdrawal(_ context.Context, _ db.Queryable, id string) (repo.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.ws[id]
	if !ok {
		return repo.Withdrawal{}, apperr.NotFound
	}
	return w, nil
}

func (f *fakeRepo) GetWithdrawalForUpdate(ctx context.Context, q db.Queryable, id string) (repo.Withdrawal, error) {
	return f.GetWithdrawal(ctx, q, id)
}

func (f *fakeRepo) GetWithdrawalByReference(_ context.Context, _ db.Queryable, ref string) (repo.Withdrawal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.ws {
		if w.ReferenceID == ref {
			return w, nil
		}
	}
	return repo.Withdrawal{}, apperr.NotFound.With("no withdrawal for %s", ref)
}

func (f *fakeRepo) UpdateWithdrawal(_ context.Context, _ db.Queryable, id string, from, to repo.WithdrawalStatus, notes, by string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := f.ws[id]
	if w.Status != from {
		return apperr.InvalidTransition
	}
	w.Status, w.AdminNotes, w.ProcessedBy, w.ProcessedAt = to, notes, by, &at
	f.ws[id] = w
	return nil
}

func (f *fakeRepo) ListWithdrawals(context.Context, string, int, int) ([]repo.Withdrawal, error) {
	return nil, nil
}

func (f *fakeRepo) ListAllWithdrawals(context.Context, repo.WithdrawalStatus, int, int) ([]repo.Withdrawal, error) {
	return nil, nil
}

type staticSettings struct{ v settings.Values }

func (s staticSettings) Current(context.Context) (settings.Values, error) { return s.v, nil }

type recorder struct {
	mu  sync.Mutex
	evs []events.WithdrawalUpdated
}

func (r *recorder) PublishWithdrawalUpdated(_ context.Context, e events.WithdrawalUpdated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, e)
	return nil
}

func newWorkflow(t *testing.T) (*Workflow, *ledgertest.Memory, *recorder) {
	t.Helper()
	mem := ledgertest.NewMemory()
	pub := &recorder{}
	vals := settings.Values{MinBetMinor: 1, MaxBetMinor: 10, EnableDeposits: true, EnableWithdrawals: true}
	wf := New(mem, &fakeRepo{ws: map[string]repo.Withdrawal{}}, staticSettings{vals}, pub, 500, zap.NewNop())
	return wf, mem, pub
}

func balance(t *testing.T, mem *ledgertest.Memory, user string) int64 {
	t.Helper()
	b, err := mem.CurrentBalance(context.Background(), user)
	require.NoError(t, err)
	return b
}

func TestRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient balance", func(t *testing.T) {
		wf, mem, _ := newWorkflow(t)
		mem.Seed("u1", 500)
		_, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600})
		assert.ErrorIs(t, err, apperr.InsufficientBalance)
		assert.Equal(t, apperr.KindPrecondition, apperr.KindOf(err))
	})

	t.Run("accepted without debit", func(t *testing.T) {
		wf, mem, pub := newWorkflow(t)
		mem.Seed("u1", 1_000)
		w, replayed, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600, BankDetails: json.RawMessage(`{"ifsc":"HDFC0001"}`)})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, repo.WithdrawalPending, w.Status)
		assert.Equal(t, "bank_transfer", w.Method)
		assert.Equal(t, int64(1_000), balance(t, mem, "u1"))
		require.Len(t, pub.evs, 1)
		assert.Equal(t, "pending", pub.evs[0].Status)
	})

	t.Run("below minimum", func(t *testing.T) {
		wf, _, _ := newWorkflow(t)
		_, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 499})
		assert.ErrorIs(t, err, apperr.BelowMinimum)
	})

	t.Run("disabled by settings", func(t *testing.T) {
		wf, mem, _ := newWorkflow(t)
		mem.Seed("u1", 1_000)
		wf.settings = staticSettings{settings.Values{EnableWithdrawals: false}}
		_, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600})
		assert.ErrorIs(t, err, apperr.WithdrawalsDisabled)
	})

	t.Run("idempotent replay", func(t *testing.T) {
		wf, mem, _ := newWorkflow(t)
		mem.Seed("u1", 1_000)
		a, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600, IdempotencyKey: "w1"})
		require.NoError(t, err)
		b, replayed, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600, IdempotencyKey: "w1"})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, a.ID, b.ID)
	})
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	wf, mem, pub := newWorkflow(t)
	mem.Seed("u1", 1_000)

	w, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600})
	require.NoError(t, err)

	done, err := wf.Approve(ctx, w.ID, "adm", "paid via NEFT")
	require.NoError(t, err)
	assert.Equal(t, repo.WithdrawalCompleted, done.Status)
	assert.Equal(t, "adm", done.ProcessedBy)
	assert.NotNil(t, done.ProcessedAt)
	assert.Equal(t, int64(400), balance(t, mem, "u1"))

	entries := mem.All("u1")
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.KindWithdrawalRelease, entries[1].Kind)
	assert.Equal(t, "withdrawal:"+w.ID, entries[1].ReferenceID)
	assert.Equal(t, w.ID, entries[1].RelatedWithdrawalID)

	// segunda decisão não debita de novo
	_, err = wf.Approve(ctx, w.ID, "adm", "")
	assert.ErrorIs(t, err, apperr.InvalidTransition)
	_, err = wf.Reject(ctx, w.ID, "adm", "")
	assert.ErrorIs(t, err, apperr.InvalidTransition)
	assert.Equal(t, int64(400), balance(t, mem, "u1"))

	require.Len(t, pub.evs, 2)
	assert.Equal(t, "pending", pub.evs[1].OldStatus)
	assert.Equal(t, "completed", pub.evs[1].Status)
}

func TestApproveRechecksBalance(t *testing.T) {
	ctx := context.Background()
	wf, mem, _ := newWorkflow(t)
	mem.Seed("u1", 1_000)

	a, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 700})
	require.NoError(t, err)
	b, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 700})
	require.NoError(t, err)

	_, err = wf.Approve(ctx, a.ID, "adm", "")
	require.NoError(t, err)

	_, err = wf.Approve(ctx, b.ID, "adm", "")
	assert.ErrorIs(t, err, apperr.InsufficientBalance)
	assert.Equal(t, int64(300), balance(t, mem, "u1"))

	still, err := wf.repo.GetWithdrawal(ctx, nil, b.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.WithdrawalPending, still.Status)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	wf, mem, _ := newWorkflow(t)
	mem.Seed("u1", 1_000)

	w, _, err := wf.Request(ctx, "u1", RequestInput{AmountMinor: 600})
	require.NoError(t, err)

	out, err := wf.Reject(ctx, w.ID, "adm", "bank details mismatch")
	require.NoError(t, err)
	assert.Equal(t, repo.WithdrawalRejected, out.Status)
	assert.Equal(t, "bank details mismatch", out.AdminNotes)
	assert.Equal(t, int64(1_000), balance(t, mem, "u1"))
	assert.Len(t, mem.All("u1"), 1)

	_, err = wf.Approve(ctx, w.ID, "adm", "")
	assert.ErrorIs(t, err, apperr.InvalidTransition)
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, repo.WithdrawalPending.CanTransition(repo.WithdrawalApproved))
	assert.True(t, repo.WithdrawalPending.CanTransition(repo.WithdrawalRejected))
	assert.True(t, repo.WithdrawalApproved.CanTransition(repo.WithdrawalCompleted))
	assert.False(t, repo.WithdrawalPending.CanTransition(repo.WithdrawalCompleted))
	assert.False(t, repo.WithdrawalRejected.CanTransition(repo.WithdrawalApproved))
	assert.False(t, repo.WithdrawalCompleted.CanTransition(repo.WithdrawalRejected))
	assert.True(t, repo.WithdrawalCompleted.IsTerminal())
	assert.False(t, repo.WithdrawalApproved.IsTerminal())
}
