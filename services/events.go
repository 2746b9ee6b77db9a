package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"access-approval-api/config"
	"access-approval-api/models"

	"go.uber.org/zap"
)

// EventActor identifies a user in an event without embedding the user record.
type EventActor struct {
	UserID   int    `json:"user_id"`
	Name     string `json:"name"`
	PFNumber string `json:"pf_number"`
}

// Recipient is a notification target with at least one contact on file.
type Recipient struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// RequestSubmittedEvent is emitted when a staff member files a request.
type RequestSubmittedEvent struct {
	Actor      EventActor           `json:"actor"`
	Request    models.AccessRequest `json:"request"`
	Recipients []Recipient          `json:"recipients"`
	Context    map[string]string    `json:"context,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// StatusChangedEvent is emitted after a committed status transition.
type StatusChangedEvent struct {
	Subject         EventActor           `json:"subject"`
	Request         models.AccessRequest `json:"request"`
	OldStatus       Status               `json:"old_status"`
	NewStatus       Status               `json:"new_status"`
	Actor           EventActor           `json:"actor"`
	Reason          string               `json:"reason,omitempty"`
	Recipients      []Recipient          `json:"recipients"`
	ExtraRecipients []Recipient          `json:"extra_recipients,omitempty"`
	Context         map[string]string    `json:"context,omitempty"`
	OccurredAt      time.Time            `json:"occurred_at"`
}

// AllRecipients merges fan-out and extra recipients, deduplicated by user id.
func (e StatusChangedEvent) AllRecipients() []Recipient {
	return dedupeRecipients(append(append([]Recipient{}, e.Recipients...), e.ExtraRecipients...), 0)
}

// EventDispatcher delivers events to an external channel.
type EventDispatcher interface {
	RequestSubmitted(ctx context.Context, event RequestSubmittedEvent) error
	StatusChanged(ctx context.Context, event StatusChangedEvent) error
}

// RecipientSource computes who is told about an event.
type RecipientSource interface {
	ForSubmitted(ctx context.Context, req models.AccessRequest) ([]Recipient, error)
	ForStatusChange(ctx context.Context, req models.AccessRequest, old, next Status) (recipients, extra []Recipient, err error)
}

// Emitter is what the workflow services call once their transaction has committed.
type Emitter interface {
	EmitRequestSubmitted(ctx context.Context, actor *Actor, req models.AccessRequest)
	EmitStatusChanged(ctx context.Context, actor *Actor, req models.AccessRequest, old, next Status, reason string)
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) EmitRequestSubmitted(context.Context, *Actor, models.AccessRequest) {}

func (NopEmitter) EmitStatusChanged(context.Context, *Actor, models.AccessRequest, Status, Status, string) {
}

// EventEmitter builds events and hands them to a dispatcher on a background
// goroutine. Failures are logged and counted, never returned.
type EventEmitter struct {
	dispatcher EventDispatcher
	recipients RecipientSource
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewEventEmitter(dispatcher EventDispatcher, recipients RecipientSource) *EventEmitter {
	return &EventEmitter{
		dispatcher: dispatcher,
		recipients: recipients,
		timeout:    30 * time.Second,
	}
}

// Wait blocks until in-flight dispatches finish. Used on shutdown and in tests.
func (e *EventEmitter) Wait() {
	e.wg.Wait()
}

func (e *EventEmitter) EmitRequestSubmitted(ctx context.Context, actor *Actor, req models.AccessRequest) {
	e.dispatch(ctx, "request_submitted", req.AccessRequestID, func(ctx context.Context) error {
		recipients, err := e.recipients.ForSubmitted(ctx, req)
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		return e.dispatcher.RequestSubmitted(ctx, RequestSubmittedEvent{
			Actor:      eventActor(actor),
			Request:    req,
			Recipients: dedupeRecipients(recipients, actorID(actor)),
			Context:    eventContext(ctx),
			OccurredAt: time.Now(),
		})
	})
}

func (e *EventEmitter) EmitStatusChanged(ctx context.Context, actor *Actor, req models.AccessRequest, old, next Status, reason string) {
	e.dispatch(ctx, "status_changed", req.AccessRequestID, func(ctx context.Context) error {
		recipients, extra, err := e.recipients.ForStatusChange(ctx, req, old, next)
		if err != nil {
			return fmt.Errorf("resolve recipients: %w", err)
		}
		return e.dispatcher.StatusChanged(ctx, StatusChangedEvent{
			Subject: EventActor{
				UserID:   req.RequesterID,
				Name:     req.StaffName,
				PFNumber: req.PFNumber,
			},
			Request:         req,
			OldStatus:       old,
			NewStatus:       next,
			Actor:           eventActor(actor),
			Reason:          reason,
			Recipients:      dedupeRecipients(recipients, actorID(actor)),
			ExtraRecipients: dedupeRecipients(extra, actorID(actor)),
			Context:         eventContext(ctx),
			OccurredAt:      time.Now(),
		})
	})
}

func (e *EventEmitter) dispatch(ctx context.Context, kind string, requestID int, send func(context.Context) error) {
	if e == nil || e.dispatcher == nil || e.recipients == nil {
		return
	}
	logger := config.Log(ctx)
	detached := persistentContext(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				eventDispatchFailures.WithLabelValues(kind).Inc()
				logger.Error("event dispatch panicked",
					zap.String("event", kind),
					zap.Int("access_request_id", requestID),
					zap.Any("panic", r),
				)
			}
		}()

		sendCtx, cancel := context.WithTimeout(detached, e.timeout)
		defer cancel()

		if err := send(sendCtx); err != nil {
			eventDispatchFailures.WithLabelValues(kind).Inc()
			logger.Warn("event dispatch failed",
				zap.String("event", kind),
				zap.Int("access_request_id", requestID),
				zap.Error(err),
			)
			return
		}
		eventsDispatched.WithLabelValues(kind).Inc()
	}()
}

func eventActor(actor *Actor) EventActor {
	if actor == nil {
		return EventActor{}
	}
	return EventActor{UserID: actor.UserID, Name: actor.Name, PFNumber: actor.PFNumber}
}

func actorID(actor *Actor) int {
	if actor == nil {
		return 0
	}
	return actor.UserID
}

func eventContext(ctx context.Context) map[string]string {
	out := map[string]string{}
	if reqID, ok := ctx.Value(config.RequestIDKey{}).(string); ok && reqID != "" {
		out["request_id"] = reqID
	}
	return out
}

// dedupeRecipients keeps the first entry per user id and drops exclude.
func dedupeRecipients(in []Recipient, exclude int) []Recipient {
	seen := make(map[int]struct{}, len(in))
	out := make([]Recipient, 0, len(in))
	for _, r := range in {
		if r.UserID == 0 || r.UserID == exclude {
			continue
		}
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r)
	}
	return out
}
