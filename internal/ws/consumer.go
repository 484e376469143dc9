package ws

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"planner-server/internal/progress"
)

// Consumer читает обновления прогресса из RabbitMQ и раздает их
// подключенным WebSocket клиентам.
type Consumer struct {
	conn        *amqp.Connection
	manager     *ConnectionManager
	queueName   string
	stopChannel chan struct{}
	logger      zerolog.Logger
}

// NewConsumer создает консьюмера очереди прогресса.
func NewConsumer(conn *amqp.Connection, manager *ConnectionManager, queueName string, logger zerolog.Logger) *Consumer {
	return &Consumer{
		conn:        conn,
		manager:     manager,
		queueName:   queueName,
		stopChannel: make(chan struct{}),
		logger:      logger.With().Str("component", "ProgressConsumer").Logger(),
	}
}

// StartConsuming запускает прослушивание очереди. Блокирующая функция,
// запускается в отдельной горутине.
func (c *Consumer) StartConsuming() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("не удалось открыть канал RabbitMQ: %w", err)
	}
	defer ch.Close()

	// Параметры очереди должны совпадать с паблишером (durable, lazy)
	args := amqp.Table{
		"x-queue-mode": "lazy",
	}
	q, err := ch.QueueDeclare(c.queueName, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("не удалось объявить очередь '%s': %w", c.queueName, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("не удалось установить QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"planner-ws-consumer", // consumer tag
		false,                 // auto-ack
		false,                 // exclusive
		false,                 // no-local
		false,                 // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("не удалось зарегистрировать консьюмера: %w", err)
	}

	c.logger.Info().Str("queue", q.Name).Msg("Progress consumer started")

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				c.logger.Info().Msg("RabbitMQ message channel closed")
				return nil
			}

			var update progress.Update
			if err := json.Unmarshal(d.Body, &update); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to decode progress update, dropping")
				_ = d.Nack(false, false)
				continue
			}
			if update.UserID == "" || update.SessionID == "" {
				c.logger.Warn().Msg("Progress update missing user_id or session_id, dropping")
				_ = d.Nack(false, false)
				continue
			}

			terminal := update.Status.IsTerminal()
			sent := c.manager.SendProgress(update.UserID, update.SessionID, terminal, d.Body)

			// Оффлайн-пользователь — не ошибка доставки: poll-канал
			// остается доступным, сообщение подтверждаем в любом случае
			if !sent {
				c.logger.Debug().
					Str("userID", update.UserID).
					Str("sessionID", update.SessionID).
					Msg("Progress update not delivered (user offline or other session)")
			}
			_ = d.Ack(false)

		case <-c.stopChannel:
			c.logger.Info().Msg("Progress consumer stop requested")
			return nil
		}
	}
}

// Stop останавливает консьюмера.
func (c *Consumer) Stop() {
	close(c.stopChannel)
}
