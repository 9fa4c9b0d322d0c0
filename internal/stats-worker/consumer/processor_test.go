package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/dashboard"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/topics"
)

type sliceReader struct {
	msgs      []kafka.Message
	next      int
	committed []int64
	done      context.CancelFunc
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.next == len(r.msgs) {
		r.done()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[r.next]
	r.next++
	return m, nil
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

type memCounters struct {
	mu       sync.Mutex
	seen     map[string]bool
	totals   map[string]int64
	failures int
}

func (c *memCounters) Apply(_ context.Context, d dashboard.Delta) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return false, errors.New("redis down")
	}
	if c.seen[d.EventID] {
		return false, nil
	}
	c.seen[d.EventID] = true
	for k, v := range d.Incr {
		c.totals[k] += v
	}
	return true, nil
}

type dlq struct{ msgs []kafka.Message }

func (d *dlq) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func run(t *testing.T, c *memCounters, q *dlq, msgs ...kafka.Message) *sliceReader {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r := &sliceReader{msgs: msgs, done: cancel}
	p := &Processor{Log: zap.NewNop(), Reader: r, Counters: c, DLQ: q, DLQTopic: topics.LedgerEventsDLQ, Backoff: time.Millisecond}
	err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	return r
}

func TestProcessorAppliesOnce(t *testing.T) {
	c := &memCounters{seen: map[string]bool{}, totals: map[string]int64{}}
	q := &dlq{}
	placed := kafka.Message{Topic: topics.BetPlaced, Offset: 1, Value: []byte(`{"event_id":"e1","stake_minor":1000}`)}
	again := placed
	again.Offset = 2

	r := run(t, c, q, placed, again)

	assert.Equal(t, int64(1), c.totals["bets_placed"])
	assert.Equal(t, int64(1_000), c.totals["staked_minor"])
	assert.Equal(t, []int64{1, 2}, r.committed)
	assert.Empty(t, q.msgs)
}

func TestProcessorMalformedGoesToDLQ(t *testing.T) {
	c := &memCounters{seen: map[string]bool{}, totals: map[string]int64{}}
	q := &dlq{}
	bad := kafka.Message{Topic: topics.BetSettled, Offset: 7, Key: []byte("u1"), Value: []byte(`not json`)}

	r := run(t, c, q, bad)

	require.Len(t, q.msgs, 1)
	assert.Equal(t, topics.LedgerEventsDLQ, q.msgs[0].Topic)
	assert.Equal(t, []byte("u1"), q.msgs[0].Key)
	assert.Equal(t, []int64{7}, r.committed)
	assert.Empty(t, c.totals)
}

func TestProcessorRetriesApply(t *testing.T) {
	c := &memCounters{seen: map[string]bool{}, totals: map[string]int64{}, failures: 3}
	msg := kafka.Message{Topic: topics.DepositCompleted, Offset: 3, Value: []byte(`{"event_id":"d1","amount_minor":10000}`)}

	r := run(t, c, &dlq{}, msg)

	assert.Equal(t, int64(10_000), c.totals["deposited_minor"])
	assert.Equal(t, []int64{3}, r.committed)
}
