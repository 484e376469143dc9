package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"planner-server/internal/progress"
)

// rabbitMQProgressPublisher публикует обновления прогресса в очередь,
// которую читает websocket-консьюмер. Реализует progress.Notifier.
type rabbitMQProgressPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQProgressPublisher создает паблишер обновлений прогресса.
// Очередь объявляется здесь же: система не должна зависеть от порядка
// запуска паблишера и консьюмера.
func NewRabbitMQProgressPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (progress.Notifier, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("progress publisher: не удалось открыть канал: %w", err)
	}

	args := amqp.Table{
		"x-queue-mode": "lazy",
	}
	if _, err := ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		args,
	); err != nil {
		ch.Close()
		return nil, fmt.Errorf("progress publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}

	log := logger.Named("ProgressPublisher")
	log.Info("Progress queue declared", zap.String("queue", queueName))

	return &rabbitMQProgressPublisher{
		channel:   ch,
		queueName: queueName,
		logger:    log,
	}, nil
}

// NotifyProgress публикует одно обновление прогресса. Доставка best-effort:
// вызывающая сторона логирует ошибку и продолжает работу.
func (p *rabbitMQProgressPublisher) NotifyProgress(ctx context.Context, update progress.Update) error {
	if p.channel == nil {
		return errors.New("канал RabbitMQ не инициализирован")
	}

	body, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления прогресса: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // exchange (default)
		p.queueName, // routing key = имя очереди
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "planner-server",
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка публикации в очередь %s: %w", p.queueName, err)
	}

	p.logger.Debug("Progress update published",
		zap.String("sessionID", update.SessionID),
		zap.Int("progress", update.Progress))
	return nil
}

// noopNotifier используется, когда push-канал отключен конфигурацией.
type noopNotifier struct{}

// NewNoopNotifier возвращает Notifier, который ничего не делает.
func NewNoopNotifier() progress.Notifier {
	return noopNotifier{}
}

func (noopNotifier) NotifyProgress(context.Context, progress.Update) error {
	return nil
}
