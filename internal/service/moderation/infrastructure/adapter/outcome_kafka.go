// internal/service/moderation/infrastructure/adapter/outcome_kafka.go
package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"lekker/internal/pkg/mq"
	"lekker/internal/service/moderation/domain"
)

// OutcomeKafkaAdapter 把裁决结果发布到 buyer-prompts 主题，
// 由买家的消息通道渲染成最终通知。
type OutcomeKafkaAdapter struct {
	writer *kafka.Writer
}

func NewOutcomeKafkaAdapter(writer *kafka.Writer) *OutcomeKafkaAdapter {
	return &OutcomeKafkaAdapter{writer: writer}
}

// OutcomeEnvelope 与购买侧的提示共用主题，靠 kind 区分。
type OutcomeEnvelope struct {
	Kind    string         `json:"kind"`
	Outcome domain.Outcome `json:"outcome"`
}

func (a *OutcomeKafkaAdapter) NotifyOutcome(ctx context.Context, outcome domain.Outcome) error {
	value, err := json.Marshal(OutcomeEnvelope{Kind: "decision", Outcome: outcome})
	if err != nil {
		return errors.Wrap(err, "marshal outcome")
	}
	key := []byte(strconv.FormatInt(outcome.BuyerTelegramID, 10))
	return errors.Wrap(mq.ProduceMessage(ctx, a.writer, key, value), "produce outcome")
}
