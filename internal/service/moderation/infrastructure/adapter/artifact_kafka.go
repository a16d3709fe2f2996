// internal/service/moderation/infrastructure/adapter/artifact_kafka.go
package adapter

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"lekker/internal/pkg/mq"
	"lekker/internal/service/moderation/domain"
)

// ArtifactKafkaAdapter 把凭证渲染请求发布到 ticket-artifacts
// 主题，由渲染工作者消费。以令牌为分区 key。
type ArtifactKafkaAdapter struct {
	writer *kafka.Writer
}

func NewArtifactKafkaAdapter(writer *kafka.Writer) *ArtifactKafkaAdapter {
	return &ArtifactKafkaAdapter{writer: writer}
}

func (a *ArtifactKafkaAdapter) RequestArtifact(ctx context.Context, req domain.ArtifactRequest) error {
	value, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal artifact request")
	}
	return errors.Wrap(mq.ProduceMessage(ctx, a.writer, []byte(req.Token), value), "produce artifact request")
}
