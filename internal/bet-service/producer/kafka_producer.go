package producer

import (
	"context"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// KafkaPublisher publica eventos de apostas. A chave é o user_id, mantendo a ordem por usuário.
type KafkaPublisher struct {
	Writer         *kafka.Writer
	TopicPlaced    string
	TopicSettled   string
	PublishTimeout time.Duration
}

func NewKafkaPublisher(w *kafka.Writer, topicPlaced, topicSettled string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, TopicPlaced: topicPlaced, TopicSettled: topicSettled, PublishTimeout: 3 * time.Second}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.PublishTimeout)
	defer cancel()
	return kafka.WriteJSON(ctx, p.Writer, p.TopicPlaced, e.UserID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = time.Now().UnixMilli()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.PublishTimeout)
	defer cancel()
	return kafka.WriteJSON(ctx, p.Writer, p.TopicSettled, e.UserID, e)
}
