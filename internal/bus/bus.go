// Package bus broadcasts optimization/validation progress over a RabbitMQ
// topic exchange so an external dashboard process can subscribe to a running
// search or validation pipeline without being wired into the engine's own
// progress callback. Grounded on the teacher's internal/amqp.{Publisher,
// Consumer} — same dial-with-retry and declare-then-publish shape, repointed
// from trade commands at progress events.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "btfast.progress"

	routingOptimization = "progress.optimization"
	routingValidation   = "progress.validation"
)

// OptimizationProgress mirrors one call of engine.RunSerialOptimization's
// progress callback: done/total chromosomes evaluated and an ETA.
type OptimizationProgress struct {
	RunID       string        `json:"runId"`
	Done        int           `json:"done"`
	Total       int           `json:"total"`
	BestFitness float64       `json:"bestFitness"`
	Estimated   time.Duration `json:"estimatedNanos"`
}

// ValidationStepResult reports how many candidates one validation.* pipeline
// step kept versus dropped.
type ValidationStepResult struct {
	RunID   string `json:"runId"`
	Step    string `json:"step"`
	Kept    int    `json:"kept"`
	Dropped int    `json:"dropped"`
}

func dialWithRetry(amqpURI string, attempts int) (*amqp091.Connection, error) {
	var conn *amqp091.Connection
	var err error
	for i := 0; i < attempts; i++ {
		conn, err = amqp091.Dial(amqpURI)
		if err == nil {
			return conn, nil
		}
		log.Printf("rabbitmq connection attempt %d failed: %s", i+1, err)
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", attempts, err)
}

// ProgressPublisher publishes progress events to the btfast.progress topic
// exchange.
type ProgressPublisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewProgressPublisher dials amqpURI (retrying up to 10 times) and declares
// the topic exchange.
func NewProgressPublisher(amqpURI string) (*ProgressPublisher, error) {
	conn, err := dialWithRetry(amqpURI, 10)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchangeName, err)
	}
	return &ProgressPublisher{conn: conn, channel: ch}, nil
}

// Close releases the channel and connection.
func (p *ProgressPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishOptimizationProgress broadcasts ev on routing key
// "progress.optimization".
func (p *ProgressPublisher) PublishOptimizationProgress(ev OptimizationProgress) error {
	return p.publish(routingOptimization, ev)
}

// PublishValidationStepResult broadcasts ev on routing key
// "progress.validation".
func (p *ProgressPublisher) PublishValidationStepResult(ev ValidationStepResult) error {
	return p.publish(routingValidation, ev)
}

func (p *ProgressPublisher) publish(routingKey string, ev any) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.channel.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// ProgressConsumer subscribes to the btfast.progress exchange.
type ProgressConsumer struct {
	conn *amqp091.Connection
}

// NewProgressConsumer dials amqpURI (retrying up to 10 times).
func NewProgressConsumer(amqpURI string) (*ProgressConsumer, error) {
	conn, err := dialWithRetry(amqpURI, 10)
	if err != nil {
		return nil, err
	}
	return &ProgressConsumer{conn: conn}, nil
}

// Close releases the connection.
func (c *ProgressConsumer) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Subscribe declares an exclusive queue bound to both routing keys and
// dispatches each decoded event to onOptimization or onValidation, whichever
// matches the delivery's routing key. Blocks until the queue's delivery
// channel closes; run it in its own goroutine.
func (c *ProgressConsumer) Subscribe(onOptimization func(OptimizationProgress), onValidation func(ValidationStepResult)) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", exchangeName, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	for _, key := range []string{routingOptimization, routingValidation} {
		if err := ch.QueueBind(q.Name, key, exchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %q: %w", key, err)
		}
	}
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("progress consumer panicked: %v", r)
			}
		}()
		for d := range msgs {
			switch d.RoutingKey {
			case routingOptimization:
				var ev OptimizationProgress
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					log.Printf("error unmarshalling optimization progress: %s", err)
					continue
				}
				if onOptimization != nil {
					onOptimization(ev)
				}
			case routingValidation:
				var ev ValidationStepResult
				if err := json.Unmarshal(d.Body, &ev); err != nil {
					log.Printf("error unmarshalling validation step result: %s", err)
					continue
				}
				if onValidation != nil {
					onValidation(ev)
				}
			}
		}
	}()
	return nil
}
