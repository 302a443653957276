// Package messaging 提供成交事件的 Kafka 遥测发布
package messaging

import (
	"context"
	"time"

	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/pkg/logger"
	"github.com/wyfcoding/metaltrading/pkg/mq"
)

// KafkaTelemetryPublisher 成交事件发布器
// fire-and-forget：异步发送，失败只记日志，绝不影响交易结果
type KafkaTelemetryPublisher struct {
	producer *mq.KafkaProducer
	topic    string
	timeout  time.Duration
}

// NewKafkaTelemetryPublisher 创建遥测发布器
func NewKafkaTelemetryPublisher(producer *mq.KafkaProducer, topic string) *KafkaTelemetryPublisher {
	return &KafkaTelemetryPublisher{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
	}
}

// PublishTradeExecuted 发布成交完成事件
func (p *KafkaTelemetryPublisher) PublishTradeExecuted(ctx context.Context, event domain.TradeExecutedEvent) {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.producer.SendMessage(sendCtx, p.topic, event.Account, event); err != nil {
			logger.Warn(sendCtx, "Failed to publish trade telemetry",
				"trade_id", event.TradeID,
				"error", err,
			)
		}
	}()
}
