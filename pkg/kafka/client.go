// Package kafka 提供了与 Kafka 消息队列交互的功能，作为报价通知任务的跨实例队列。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"orbitx-go/internal/config"
	"orbitx-go/pkg/log"
	"orbitx-go/pkg/tasks"
)

// maxAttempts 是单个任务处理失败后允许的最大重试次数，达到后提交 offset 放弃该任务。
const maxAttempts = 3

// AttemptCounter 记录任务失败次数，跨消费者实例共享。
type AttemptCounter interface {
	IncrAttempts(ctx context.Context, taskKey string) (int64, error)
	ResetAttempts(ctx context.Context, taskKey string) error
}

// Producer 把通知任务写入 Kafka，实现 tasks.Queue。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
// 写入是异步的：Enqueue 立即返回，投递失败只记录日志。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(splitBrokers(cfg.Brokers)...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				for _, m := range messages {
					log.Errorf("投递通知任务到 Kafka 失败: key=%s, err=%v", string(m.Key), err)
				}
			}
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Enqueue 发送一个通知任务到 Kafka，以报价单 ID 作为消息 key。
func (p *Producer) Enqueue(ctx context.Context, task tasks.NotificationTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.QuoteID),
		Value: taskBytes,
	})
}

// Close 刷新缓冲中的消息并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理通知任务，直到 ctx 被取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, handler tasks.Handler, counter AttemptCounter) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  splitBrokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}
		handleMessage(ctx, r, m, handler, counter)
	}
}

// committer 是 kafka.Reader 的提交能力子集，便于测试。
type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func handleMessage(ctx context.Context, r committer, m kafka.Message, handler tasks.Handler, counter AttemptCounter) {
	var task tasks.NotificationTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		commit(ctx, r, m)
		return
	}

	if err := handler.Process(ctx, task); err != nil {
		log.Errorf("处理通知任务失败: quote=%s, err=%v", task.QuoteID, err)
		attempts, incErr := counter.IncrAttempts(ctx, task.QuoteID)
		if incErr != nil {
			// Redis 异常时不提交 offset，让 Kafka 重试
			return
		}
		if attempts >= maxAttempts {
			log.Errorf("通知任务多次失败(>=%d)，提交 offset 终止重试: quote=%s", maxAttempts, task.QuoteID)
			commit(ctx, r, m)
		}
		return
	}

	_ = counter.ResetAttempts(ctx, task.QuoteID)
	commit(ctx, r, m)
}

func commit(ctx context.Context, r committer, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
