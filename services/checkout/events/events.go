// Package events publishes transaction status changes.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkedin/goavro"
	uuid "github.com/satori/go.uuid"
	"github.com/segmentio/kafka-go"

	appkafka "github.com/pulseras/pulseras-go/libs/kafka"
	"github.com/pulseras/pulseras-go/services/checkout/model"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "pulseras.transaction.status"

const statusChangedName = "transaction_status_changed"

const statusChangedSchema = `{
  "namespace": "pulseras.payments",
  "type": "record",
  "name": "transaction_status_changed",
  "doc": "This message is sent when a transaction moves to another status, including moves to the same status",
  "fields": [
    { "name": "id", "type": "string" },
    { "name": "transactionId", "type": "string" },
    { "name": "orderIds", "type": { "type": "array", "items": "string" }, "default": [] },
    { "name": "from", "type": "string" },
    { "name": "to", "type": "string" },
    { "name": "adminNotes", "type": ["null", "string"], "default": null },
    { "name": "createdAt", "type": "string" }
  ]
}`

var errUnexpectedRecord = errors.New("events: unexpected record shape")

// StatusChanged is emitted after a status change has been committed.
type StatusChanged struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	OrderIDs      []uuid.UUID
	From          model.Status
	To            model.Status
	AdminNotes    *string
	CreatedAt     time.Time
}

// NewStatusChanged describes the move of txn from the from status to its current one.
func NewStatusChanged(from model.Status, txn *model.Transaction, now time.Time) StatusChanged {
	result := StatusChanged{
		ID:            uuid.NewV4(),
		TransactionID: txn.ID,
		OrderIDs:      make([]uuid.UUID, 0, len(txn.Orders)),
		From:          from,
		To:            txn.Status,
		AdminNotes:    txn.AdminNotes,
		CreatedAt:     now.UTC(),
	}

	for i := range txn.Orders {
		result.OrderIDs = append(result.OrderIDs, txn.Orders[i].ID)
	}

	return result
}

// NewCodec compiles the status change schema.
func NewCodec() (*goavro.Codec, error) {
	codecs, err := appkafka.GenerateCodecs(map[string]string{
		statusChangedName: statusChangedSchema,
	})
	if err != nil {
		return nil, err
	}

	return codecs[statusChangedName], nil
}

// CodecEncode - encode using the status change codec
func (e *StatusChanged) CodecEncode(codec *goavro.Codec) ([]byte, error) {
	orderIDs := make([]interface{}, 0, len(e.OrderIDs))
	for i := range e.OrderIDs {
		orderIDs = append(orderIDs, e.OrderIDs[i].String())
	}

	var notes interface{}
	if e.AdminNotes != nil {
		notes = map[string]interface{}{"string": *e.AdminNotes}
	}

	return codec.BinaryFromNative(nil, map[string]interface{}{
		"id":            e.ID.String(),
		"transactionId": e.TransactionID.String(),
		"orderIds":      orderIDs,
		"from":          string(e.From),
		"to":            string(e.To),
		"adminNotes":    notes,
		"createdAt":     e.CreatedAt.Format(time.RFC3339),
	})
}

// CodecDecode - decode using the status change codec
func (e *StatusChanged) CodecDecode(codec *goavro.Codec, binary []byte) error {
	native, _, err := codec.NativeFromBinary(binary)
	if err != nil {
		return fmt.Errorf("failed to decode status change: %w", err)
	}

	rec, ok := native.(map[string]interface{})
	if !ok {
		return errUnexpectedRecord
	}

	if e.ID, err = uuidField(rec, "id"); err != nil {
		return err
	}

	if e.TransactionID, err = uuidField(rec, "transactionId"); err != nil {
		return err
	}

	ids, _ := rec["orderIds"].([]interface{})
	e.OrderIDs = make([]uuid.UUID, 0, len(ids))
	for i := range ids {
		s, _ := ids[i].(string)

		id, err := uuid.FromString(s)
		if err != nil {
			return fmt.Errorf("failed to decode order id: %w", err)
		}

		e.OrderIDs = append(e.OrderIDs, id)
	}

	from, _ := rec["from"].(string)
	to, _ := rec["to"].(string)
	e.From, e.To = model.Status(from), model.Status(to)

	e.AdminNotes = nil
	if u, ok := rec["adminNotes"].(map[string]interface{}); ok {
		if s, ok := u["string"].(string); ok {
			e.AdminNotes = &s
		}
	}

	created, _ := rec["createdAt"].(string)
	if e.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return fmt.Errorf("failed to decode createdAt: %w", err)
	}

	return nil
}

func uuidField(rec map[string]interface{}, key string) (uuid.UUID, error) {
	s, ok := rec[key].(string)
	if !ok {
		return uuid.Nil, errUnexpectedRecord
	}

	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}

	return id, nil
}

// Publisher delivers status changes.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt StatusChanged) error
}

// KafkaPublisher writes avro encoded status changes to a topic, keyed by transaction.
type KafkaPublisher struct {
	writer appkafka.MessageWriter
	codec  *goavro.Codec
}

func NewKafkaPublisher(writer appkafka.MessageWriter, codec *goavro.Codec) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, codec: codec}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	value, err := evt.CodecEncode(p.codec)
	if err != nil {
		return fmt.Errorf("failed to encode status change: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.TransactionID.String()),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write status change: %w", err)
	}

	return nil
}

// Close releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	return nil
}

// InitPublisher returns a Kafka publisher for brokers, or a NoopPublisher when there are none.
func InitPublisher(ctx context.Context, brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 {
		return NoopPublisher{}, nil
	}

	if topic == "" {
		topic = DefaultTopic
	}

	codec, err := NewCodec()
	if err != nil {
		return nil, fmt.Errorf("failed to create status change codec: %w", err)
	}

	writer, err := appkafka.InitKafkaWriter(ctx, brokers, topic)
	if err != nil {
		return nil, err
	}

	return NewKafkaPublisher(writer, codec), nil
}

type MockPublisher struct {
	FnPublishStatusChanged func(ctx context.Context, evt StatusChanged) error
}

func (p *MockPublisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	if p.FnPublishStatusChanged == nil {
		return nil
	}

	return p.FnPublishStatusChanged(ctx, evt)
}
