// internal/service/moderation/interfaces/decision_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"lekker/internal/pkg/logger"
	"lekker/internal/pkg/mq"
	ledgerdomain "lekker/internal/service/ledger/domain"
	"lekker/internal/service/moderation/application"
	"lekker/internal/service/moderation/domain"
)

// AdminCommand 是 moderation-decisions 主题上的消息体，
// 由管理员通道在按钮回调时发布。
// Action 形如 "approve:123" / "reject:123"。
type AdminCommand struct {
	AdminTelegramID int64  `json:"admin_telegram_id"`
	Action          string `json:"action"`
}

// DecisionConsumer 监听管理员的裁决并驱动审核服务。
type DecisionConsumer struct {
	reader  *kafka.Reader
	svc     *application.Service
	wg      sync.WaitGroup
	stopped bool
}

func NewDecisionConsumer(reader *kafka.Reader, svc *application.Service) *DecisionConsumer {
	return &DecisionConsumer{reader: reader, svc: svc}
}

// Start 开始消费。这是一个长期运行的方法。
func (c *DecisionConsumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("decision consumer started")
		for {
			if c.stopped {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("decision consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch decision, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			if err := c.processMessage(newCtx, msg); err != nil {
				logger.Ctx(newCtx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to process decision")
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit decision")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (c *DecisionConsumer) Stop(ctx context.Context) {
	c.stopped = true
	c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().Msg("decision consumer stopped")
}

func (c *DecisionConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var cmd AdminCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return errors.Wrap(err, "unmarshal admin command")
	}
	decision, err := ParseDecision(cmd)
	if err != nil {
		return err
	}

	logger.Ctx(ctx).Info().Int64("admin", decision.AdminTelegramID).Uint("payment", decision.PaymentID).Bool("approve", decision.Approve).Msg("decision received")
	if decision.Approve {
		_, err = c.svc.Approve(ctx, decision.PaymentID)
	} else {
		err = c.svc.Reject(ctx, decision.PaymentID)
	}
	if err != nil {
		// 重复裁决是管理员双击按钮的正常结果，降级为提示
		if errors.Is(err, ledgerdomain.ErrAlreadyProcessed) {
			logger.Ctx(ctx).Warn().Uint("payment", decision.PaymentID).Msg("payment already decided, ignoring")
			return nil
		}
		return err
	}
	return nil
}

// ParseDecision 把管理员命令解析为裁决。
func ParseDecision(cmd AdminCommand) (domain.Decision, error) {
	var approve bool
	var rest string
	switch {
	case strings.HasPrefix(cmd.Action, "approve:"):
		approve = true
		rest = strings.TrimPrefix(cmd.Action, "approve:")
	case strings.HasPrefix(cmd.Action, "reject:"):
		rest = strings.TrimPrefix(cmd.Action, "reject:")
	default:
		return domain.Decision{}, errors.Errorf("unknown admin action %q", cmd.Action)
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return domain.Decision{}, errors.Errorf("bad payment id in action %q", cmd.Action)
	}
	return domain.Decision{
		PaymentID:       uint(id),
		AdminTelegramID: cmd.AdminTelegramID,
		Approve:         approve,
	}, nil
}
