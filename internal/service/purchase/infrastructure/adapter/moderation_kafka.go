// internal/service/purchase/infrastructure/adapter/moderation_kafka.go
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

// ModerationKafkaAdapter 把完整的凭证提交发布到 moderation-requests
// 主题，等待管理员通道消费并做出裁决。
type ModerationKafkaAdapter struct {
	writer *kafka.Writer
}

func NewModerationKafkaAdapter(writer *kafka.Writer) *ModerationKafkaAdapter {
	return &ModerationKafkaAdapter{writer: writer}
}

func (a *ModerationKafkaAdapter) NotifySubmission(ctx context.Context, submission domain.Submission) error {
	value, err := json.Marshal(submission)
	if err != nil {
		return errors.Wrap(err, "marshal submission")
	}
	key := []byte(strconv.FormatUint(uint64(submission.PaymentID), 10))
	return errors.Wrap(mq.ProduceMessage(ctx, a.writer, key, value), "produce moderation request")
}
