// internal/service/purchase/interfaces/buyer_event_consumer.go
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
	"lekker/internal/service/purchase/application"
	"lekker/internal/service/purchase/domain"
)

// BuyerEvent 是 buyer-events 主题上的消息体，由消息通道
// （Telegram 网关等）在买家每次交互时发布。
// Action 携带按钮回调（"qty:2"、"tier:discount"），Text 携带
// 自由文本输入，Image 携带凭证图片；三者互斥。
type BuyerEvent struct {
	Buyer  domain.Buyer       `json:"buyer"`
	Action string             `json:"action,omitempty"`
	Text   string             `json:"text,omitempty"`
	Image  *domain.ProofImage `json:"image,omitempty"`
	// GroupID 非空表示该图片属于一个相册
	GroupID string `json:"group_id,omitempty"`
}

// BuyerEventConsumer 是驱动适配器：监听 buyer-events 主题并
// 驱动购买状态机。同一买家的事件由分区 key 保证有序，
// 消费循环本身逐条串行处理。
type BuyerEventConsumer struct {
	reader  *kafka.Reader
	svc     *application.Service
	wg      sync.WaitGroup
	stopped bool
}

func NewBuyerEventConsumer(reader *kafka.Reader, svc *application.Service) *BuyerEventConsumer {
	return &BuyerEventConsumer{reader: reader, svc: svc}
}

// Start 开始消费。这是一个长期运行的方法。
func (c *BuyerEventConsumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.reader.Config().Topic).Msg("buyer event consumer started")
		for {
			if c.stopped {
				return
			}
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("buyer event consumer shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not fetch buyer event, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			propagator := otel.GetTextMapPropagator()
			headerCarrier := mq.KafkaHeaderCarrier(msg.Headers)
			newCtx := propagator.Extract(ctx, &headerCarrier)

			if err := c.processMessage(newCtx, msg); err != nil {
				// 不合法的消息没有重试价值，记录后继续
				logger.Ctx(newCtx).Error().Err(err).Int64("offset", msg.Offset).Msg("failed to process buyer event")
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit buyer event")
			}
		}
	}()
	return nil
}

// Stop 优雅地停止消费者。
func (c *BuyerEventConsumer) Stop(ctx context.Context) {
	c.stopped = true
	c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().Msg("buyer event consumer stopped")
}

func (c *BuyerEventConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var wire BuyerEvent
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return errors.Wrap(err, "unmarshal buyer event")
	}
	if wire.Buyer.TelegramID == 0 {
		return errors.New("buyer event without telegram id")
	}

	event, err := ParseEvent(wire)
	if err != nil {
		return err
	}
	return c.svc.HandleEvent(ctx, wire.Buyer, event)
}

// ParseEvent 把线上消息翻译成状态机事件。
//
// 动作词表（来自消息通道的按钮回调）：
//
//	buy:1          直接以数量 1 进入档位选择
//	buy:more       进入数量选择
//	qty:<n>        选定数量
//	tier:discount  选定折扣档
//	tier:standard  选定标准档
//	paid:confirm   确认已转账
//	back           返回上一步
//	cancel         放弃购买
//
// 没有动作时：图片视为支付凭证，自由文本视为促销码输入。
func ParseEvent(wire BuyerEvent) (domain.Event, error) {
	if wire.Action != "" {
		switch {
		case wire.Action == "buy:1":
			return domain.SelectQuantity{Quantity: 1}, nil
		case wire.Action == "buy:more":
			return domain.StartPurchase{}, nil
		case strings.HasPrefix(wire.Action, "qty:"):
			n, err := strconv.Atoi(strings.TrimPrefix(wire.Action, "qty:"))
			if err != nil {
				return nil, errors.Wrapf(err, "bad quantity action %q", wire.Action)
			}
			return domain.SelectQuantity{Quantity: n}, nil
		case wire.Action == "tier:discount":
			return domain.SelectTier{Tier: domain.TierDiscount}, nil
		case wire.Action == "tier:standard":
			return domain.SelectTier{Tier: domain.TierStandard}, nil
		case wire.Action == "paid:confirm":
			return domain.ConfirmPaid{}, nil
		case wire.Action == "back":
			return domain.Back{}, nil
		case wire.Action == "cancel":
			return domain.CancelPurchase{}, nil
		}
		return nil, errors.Errorf("unknown buyer action %q", wire.Action)
	}

	if wire.Image != nil {
		return domain.SubmitProof{Image: *wire.Image, GroupID: wire.GroupID}, nil
	}

	if text := strings.TrimSpace(wire.Text); text != "" {
		// 促销码在存储中统一为大写
		return domain.EnterPromoCode{Code: strings.ToUpper(text)}, nil
	}

	return nil, errors.New("empty buyer event")
}
