// internal/service/purchase/infrastructure/adapter/prompt_kafka.go
package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"lekker/internal/pkg/mq"
	"lekker/internal/service/purchase/domain"
)

// PromptEnvelope 是 buyer-prompts 主题上的消息体。
// 消费它的消息通道（Telegram 网关等）负责把 Kind 渲染成
// 具体的文案和键盘。
type PromptEnvelope struct {
	BuyerID int64         `json:"buyer_id"`
	Prompt  domain.Prompt `json:"prompt"`
}

// PromptKafkaAdapter 把状态机的提示发布到 buyer-prompts 主题。
// 以买家 ID 作为分区 key，同一买家的提示保持有序。
type PromptKafkaAdapter struct {
	writer *kafka.Writer
}

func NewPromptKafkaAdapter(writer *kafka.Writer) *PromptKafkaAdapter {
	return &PromptKafkaAdapter{writer: writer}
}

func (a *PromptKafkaAdapter) Prompt(ctx context.Context, buyerID int64, prompt domain.Prompt) error {
	value, err := json.Marshal(PromptEnvelope{BuyerID: buyerID, Prompt: prompt})
	if err != nil {
		return errors.Wrap(err, "marshal prompt envelope")
	}
	key := []byte(strconv.FormatInt(buyerID, 10))
	return errors.Wrap(mq.ProduceMessage(ctx, a.writer, key, value), "produce prompt")
}
