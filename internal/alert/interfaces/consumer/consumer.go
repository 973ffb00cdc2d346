// Package consumer 贷款事件的 Kafka 消费入口
package consumer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wyfcoding/microfinance/internal/alert/application"
	"github.com/wyfcoding/microfinance/pkg/mq"
)

// EventConsumer 消费贷款事件并交给告警服务处理
type EventConsumer struct {
	consumer *mq.KafkaConsumer
	service  *application.AlertService
	logger   *slog.Logger
}

func NewEventConsumer(consumer *mq.KafkaConsumer, service *application.AlertService, logger *slog.Logger) *EventConsumer {
	return &EventConsumer{consumer: consumer, service: service, logger: logger}
}

// Run 消费循环, ctx 取消时退出。
// 坏消息记日志后跳过, 位点照常推进, 不会卡住分区。
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			c.logger.ErrorContext(ctx, "kafka read failed", "error", err)
			continue
		}

		var event application.LoanEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			c.logger.WarnContext(ctx, "malformed loan event, skipping",
				"topic", msg.Topic, "offset", msg.Offset, "error", err)
			continue
		}

		if err := c.service.HandleEvent(ctx, event); err != nil {
			c.logger.ErrorContext(ctx, "loan event handling failed",
				"event_id", event.EventID, "type", event.Type, "error", err)
		}
	}
}
