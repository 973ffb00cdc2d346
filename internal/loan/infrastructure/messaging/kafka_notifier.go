// Package messaging 贷款领域事件的 Kafka 出站实现
package messaging

import (
	"context"

	"github.com/wyfcoding/microfinance/internal/loan/domain"
	"github.com/wyfcoding/microfinance/pkg/mq"
)

// KafkaNotifier 将贷款事件发布到 Kafka, 由告警服务消费后投递邮件。
// 以贷款 ID 为分区键, 同一贷款的事件保持顺序。
type KafkaNotifier struct {
	producer *mq.KafkaProducer
	topic    string
}

func NewKafkaNotifier(producer *mq.KafkaProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event domain.LoanEvent) error {
	return n.producer.SendMessage(ctx, n.topic, event.LoanID, event)
}
