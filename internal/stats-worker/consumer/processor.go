package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-ledger/internal/dashboard"
	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

// Reader é o subconjunto do kafka.Reader usado pelo processor
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type DLQWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Counters interface {
	Apply(ctx context.Context, d dashboard.Delta) (bool, error)
}

// Processor consome os eventos de ledger e atualiza os contadores do painel.
// O offset só é commitado depois que o evento foi aplicado ou enviado para a DLQ.
type Processor struct {
	Log      *zap.Logger
	Reader   Reader
	Counters Counters
	DLQ      DLQWriter // opcional
	DLQTopic string

	// intervalo inicial das novas tentativas; cresce exponencialmente até 30x
	Backoff time.Duration
}

// policy nunca desiste sozinha: só o fim do contexto interrompe as tentativas.
func (p *Processor) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Backoff
	b.MaxInterval = 30 * p.Backoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, ctx)
}

// Run inicia o loop principal de consumo
func (p *Processor) Run(ctx context.Context) error {
	if p.Backoff == 0 {
		p.Backoff = 500 * time.Millisecond
	}
	readRetry := p.policy(ctx)
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			metrics.StatsEvents.WithLabelValues("", "read_error").Inc()
			if !sleep(ctx, readRetry.NextBackOff()) {
				return ctx.Err()
			}
			continue
		}
		readRetry.Reset()

		if err := p.handle(ctx, m); err != nil {
			return err
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka commit failed", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle só devolve erro quando o contexto acabou; falhas do Redis são repetidas.
func (p *Processor) handle(ctx context.Context, m kafka.Message) error {
	d, err := dashboard.DeltaFor(m.Topic, m.Value)
	if errors.Is(err, dashboard.ErrMalformed) {
		p.Log.Warn("malformed event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		metrics.StatsEvents.WithLabelValues(m.Topic, "malformed").Inc()
		p.toDLQ(ctx, m, err)
		return nil
	}

	var applied bool
	apply := func() error {
		var err error
		applied, err = p.Counters.Apply(ctx, d)
		return err
	}
	failed := func(err error, next time.Duration) {
		p.Log.Warn("apply counters failed", zap.String("event_id", d.EventID), zap.Duration("retry_in", next), zap.Error(err))
		metrics.StatsEvents.WithLabelValues(m.Topic, "apply_error").Inc()
	}
	if err := backoff.RetryNotify(apply, p.policy(ctx), failed); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	result := "applied"
	if !applied {
		result = "duplicate"
	}
	metrics.StatsEvents.WithLabelValues(m.Topic, result).Inc()
	return nil
}

func (p *Processor) toDLQ(ctx context.Context, m kafka.Message, cause error) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Topic: p.DLQTopic,
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: "x-origin-topic", Value: []byte(m.Topic)},
			kafka.Header{Key: "x-error", Value: []byte(cause.Error())},
		),
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Error("dlq write failed", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
