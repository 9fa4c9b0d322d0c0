package producer

import (
	"context"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/shared/kafka"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

// KafkaPublisher publica eventos de depósito e saque, chaveados por user_id
type KafkaPublisher struct {
	Writer          *kafka.Writer
	TopicDeposit    string
	TopicWithdrawal string
	PublishTimeout  time.Duration
}

func NewKafkaPublisher(w *kafka.Writer, topicDeposit, topicWithdrawal string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, TopicDeposit: topicDeposit, TopicWithdrawal: topicWithdrawal, PublishTimeout: 3 * time.Second}
}

func (p *KafkaPublisher) PublishDepositCompleted(ctx context.Context, e events.DepositCompleted) error {
	e.TsUnixMs = time.Now().UnixMilli()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.PublishTimeout)
	defer cancel()
	return kafka.WriteJSON(ctx, p.Writer, p.TopicDeposit, e.UserID, e)
}

func (p *KafkaPublisher) PublishWithdrawalUpdated(ctx context.Context, e events.WithdrawalUpdated) error {
	e.TsUnixMs = time.Now().UnixMilli()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.PublishTimeout)
	defer cancel()
	return kafka.WriteJSON(ctx, p.Writer, p.TopicWithdrawal, e.UserID, e)
}
