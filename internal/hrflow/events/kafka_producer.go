// Package events publishes document and pack lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gartstein/hrflow/internal/hrflow/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	DocumentGenerated EventType = "document_generated"
	DocumentFailed    EventType = "document_failed"
	PackCreated       EventType = "pack_created"
	PackFailed        EventType = "pack_failed"
)

type Event struct {
	Type          EventType         `json:"type"`
	EmployeeID    string            `json:"employeeId"`
	EmployeeName  string            `json:"employeeName,omitempty"`
	DocumentID    string            `json:"documentId,omitempty"`
	PackID        string            `json:"packId,omitempty"`
	DocumentTypes []models.Category `json:"documentTypes,omitempty"`
	Size          int               `json:"size,omitempty"`
	Error         string            `json:"error,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

func DocumentEvent(t EventType, doc *models.GeneratedDocument) Event {
	return Event{
		Type:          t,
		EmployeeID:    doc.EmployeeID,
		EmployeeName:  doc.EmployeeName,
		DocumentID:    doc.ID,
		DocumentTypes: []models.Category{doc.Category},
		Size:          doc.Size,
		Error:         doc.ErrorMessage,
		OccurredAt:    time.Now().UTC(),
	}
}

func PackEvent(t EventType, pack *models.Pack) Event {
	return Event{
		Type:          t,
		EmployeeID:    pack.EmployeeID,
		EmployeeName:  pack.EmployeeName,
		PackID:        pack.ID,
		DocumentTypes: pack.Categories,
		Size:          pack.Size,
		Error:         pack.ErrorMessage,
		OccurredAt:    time.Now().UTC(),
	}
}

// key partitions events by employee so one employee's events stay ordered.
func (e Event) key() string {
	switch {
	case e.EmployeeID != "":
		return e.EmployeeID
	case e.PackID != "":
		return e.PackID
	default:
		return e.DocumentID
	}
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues events and writes them from a single goroutine. When the
// queue is full, events are dropped rather than blocking the caller.
type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
}

func NewProducer(brokers []string, logger *zap.Logger, topic string) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			Topic:                  topic,
			AllowAutoTopicCreation: true,
		},
		events:    make(chan Event, 1000),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
	}

	go p.eventLoop()
	return p
}

// EnsureTopic creates the topic if the broker does not have it yet.
func EnsureTopic(brokers []string, topic string, logger *zap.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Warn("Failed to create topic (may already exist)", zap.String("topic", topic), zap.Error(err))
	}
	return nil
}

func (p *Producer) Produce(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("employee_id", event.EmployeeID),
		)
	}
}

func (p *Producer) eventLoop() {
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("employee_id", event.EmployeeID),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.key()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("employee_id", event.EmployeeID),
		)
	}
}

func (p *Producer) Close() {
	close(p.closeChan)
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// LogProducer stands in for Kafka when no brokers are configured.
type LogProducer struct {
	logger *zap.Logger
}

func NewLogProducer(logger *zap.Logger) *LogProducer {
	return &LogProducer{logger: logger.Named("events")}
}

func (p *LogProducer) Produce(event Event) {
	p.logger.Info("Event",
		zap.String("event_type", string(event.Type)),
		zap.String("employee_id", event.EmployeeID),
		zap.String("document_id", event.DocumentID),
		zap.String("pack_id", event.PackID),
	)
}

func (p *LogProducer) Close() {}
