package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"access-approval-api/models"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MultiDispatcher fans one event out to several channels and joins their errors.
type MultiDispatcher []EventDispatcher

func (m MultiDispatcher) RequestSubmitted(ctx context.Context, event RequestSubmittedEvent) error {
	var errs []error
	for _, d := range m {
		if err := d.RequestSubmitted(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiDispatcher) StatusChanged(ctx context.Context, event StatusChangedEvent) error {
	var errs []error
	for _, d := range m {
		if err := d.StatusChanged(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDispatcher writes events to the structured log.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) RequestSubmitted(_ context.Context, event RequestSubmittedEvent) error {
	d.logger.Info("access request submitted",
		zap.Int("access_request_id", event.Request.AccessRequestID),
		zap.Int("actor_id", event.Actor.UserID),
		zap.Int("recipients", len(event.Recipients)),
	)
	return nil
}

func (d *LogDispatcher) StatusChanged(_ context.Context, event StatusChangedEvent) error {
	d.logger.Info("access request status event",
		zap.Int("access_request_id", event.Request.AccessRequestID),
		zap.String("old_status", string(event.OldStatus)),
		zap.String("new_status", string(event.NewStatus)),
		zap.Int("actor_id", event.Actor.UserID),
		zap.Int("recipients", len(event.AllRecipients())),
	)
	return nil
}

// InboxDispatcher stores one in-app notification row per recipient.
type InboxDispatcher struct {
	db *gorm.DB
}

func NewInboxDispatcher(db *gorm.DB) *InboxDispatcher {
	return &InboxDispatcher{db: db}
}

func (d *InboxDispatcher) RequestSubmitted(ctx context.Context, event RequestSubmittedEvent) error {
	title := "New access request"
	message := fmt.Sprintf("%s (%s) submitted access request %s.",
		event.Request.StaffName, event.Request.PFNumber, event.Request.RequestNumber)
	return d.store(ctx, event.Recipients, title, message, "info", event.Request.AccessRequestID)
}

func (d *InboxDispatcher) StatusChanged(ctx context.Context, event StatusChangedEvent) error {
	title := "Access request " + statusTitle(event.NewStatus)
	message := fmt.Sprintf("Access request %s moved from %s to %s.",
		event.Request.RequestNumber, event.OldStatus, event.NewStatus)
	kind := "info"
	switch event.NewStatus {
	case StatusDictApproved:
		kind = "success"
	case StatusDictRejected, StatusDivisionalRejected, StatusRejected:
		kind = "warning"
	}
	return d.store(ctx, event.AllRecipients(), title, message, kind, event.Request.AccessRequestID)
}

func (d *InboxDispatcher) store(ctx context.Context, recipients []Recipient, title, message, kind string, requestID int) error {
	if len(recipients) == 0 {
		return nil
	}
	related := uint(requestID)
	now := time.Now()
	rows := make([]models.Notification, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, models.Notification{
			UserID:           uint(r.UserID),
			Title:            title,
			Message:          message,
			Type:             kind,
			RelatedRequestID: &related,
			CreateAt:         now,
		})
	}
	return d.db.WithContext(ctx).Create(&rows).Error
}

var mailTemplate = template.Must(template.New("event").Parse(`<p>Dear {{.Name}},</p>
<p>{{.Body}}</p>
<p>Request: <strong>{{.RequestNumber}}</strong> ({{.StaffName}}, PF {{.PFNumber}})</p>
{{if .Reason}}<p>Comment: {{.Reason}}</p>{{end}}`))

type mailView struct {
	Name          string
	Body          string
	RequestNumber string
	StaffName     string
	PFNumber      string
	Reason        string
}

// MailSender matches config.SendMail.
type MailSender func(to []string, subject, html string) error

// MailDispatcher e-mails every recipient that has an address on file.
type MailDispatcher struct {
	send MailSender
}

func NewMailDispatcher(send MailSender) *MailDispatcher {
	return &MailDispatcher{send: send}
}

func (d *MailDispatcher) RequestSubmitted(_ context.Context, event RequestSubmittedEvent) error {
	return d.deliver(event.Recipients, "New access request "+event.Request.RequestNumber, mailView{
		Body:          "A new access request is waiting for your review.",
		RequestNumber: event.Request.RequestNumber,
		StaffName:     event.Request.StaffName,
		PFNumber:      event.Request.PFNumber,
	})
}

func (d *MailDispatcher) StatusChanged(_ context.Context, event StatusChangedEvent) error {
	return d.deliver(event.AllRecipients(), "Access request "+statusTitle(event.NewStatus), mailView{
		Body:          fmt.Sprintf("The access request moved from %s to %s.", event.OldStatus, event.NewStatus),
		RequestNumber: event.Request.RequestNumber,
		StaffName:     event.Request.StaffName,
		PFNumber:      event.Request.PFNumber,
		Reason:        event.Reason,
	})
}

func (d *MailDispatcher) deliver(recipients []Recipient, subject string, view mailView) error {
	var errs []error
	for _, r := range recipients {
		if r.Email == "" {
			continue
		}
		view.Name = r.Name
		var body bytes.Buffer
		if err := mailTemplate.Execute(&body, view); err != nil {
			return fmt.Errorf("render mail: %w", err)
		}
		if err := d.send([]string{r.Email}, subject, body.String()); err != nil {
			errs = append(errs, fmt.Errorf("mail to user %d: %w", r.UserID, err))
		}
	}
	return errors.Join(errs...)
}

// KafkaDispatcher publishes events as JSON keyed by access request id, for the
// external SMS/notification service to consume.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic}
}

// NewKafkaProducer builds a synchronous producer waiting for the leader ack.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 5 * time.Second
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

type kafkaEnvelope struct {
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
}

func (d *KafkaDispatcher) RequestSubmitted(_ context.Context, event RequestSubmittedEvent) error {
	return d.publish("access_request.submitted", event.Request.AccessRequestID, event)
}

func (d *KafkaDispatcher) StatusChanged(_ context.Context, event StatusChangedEvent) error {
	return d.publish("access_request.status_changed", event.Request.AccessRequestID, event)
}

func (d *KafkaDispatcher) publish(eventType string, requestID int, payload interface{}) error {
	body, err := json.Marshal(kafkaEnvelope{EventType: eventType, Payload: payload})
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(requestID)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}
	if _, _, err := d.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func statusTitle(s Status) string {
	switch s {
	case StatusHODReviewed:
		return "reviewed by head of department"
	case StatusDivisionalApproved:
		return "approved by divisional director"
	case StatusDivisionalRejected:
		return "rejected by divisional director"
	case StatusPendingICTDirector:
		return "forwarded to ICT director"
	case StatusDictApproved:
		return "approved by ICT director"
	case StatusDictRejected:
		return "rejected by ICT director"
	case StatusRejected:
		return "rejected"
	}
	return string(s)
}
