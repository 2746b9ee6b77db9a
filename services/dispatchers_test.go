package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"access-approval-api/models"

	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleStatusEvent() StatusChangedEvent {
	return StatusChangedEvent{
		Request: models.AccessRequest{
			AccessRequestID: 501,
			RequestNumber:   "AR-1A2B3C4D5E",
			StaffName:       "Grace Wanjiru",
			PFNumber:        "PF-4040",
		},
		OldStatus:       StatusPendingICTDirector,
		NewStatus:       StatusDictApproved,
		Actor:           EventActor{UserID: 90, Name: "ICT Director"},
		Reason:          "Approved <for> one year",
		Recipients:      []Recipient{{UserID: 30, Name: "Director", Email: "director@example.org"}},
		ExtraRecipients: []Recipient{{UserID: 40, Name: "Grace", Phone: "+254700000000"}},
	}
}

func TestMailDispatcherSendsToAddressesOnly(t *testing.T) {
	type sent struct {
		to      []string
		subject string
		body    string
	}
	var outbox []sent
	d := NewMailDispatcher(func(to []string, subject, html string) error {
		outbox = append(outbox, sent{to, subject, html})
		return nil
	})

	if err := d.StatusChanged(context.Background(), sampleStatusEvent()); err != nil {
		t.Fatalf("StatusChanged returned error: %v", err)
	}
	if len(outbox) != 1 || outbox[0].to[0] != "director@example.org" {
		t.Fatalf("expected a single mail to the director, got %+v", outbox)
	}
	if !strings.Contains(outbox[0].subject, "approved by ICT director") {
		t.Fatalf("unexpected subject %q", outbox[0].subject)
	}
	if !strings.Contains(outbox[0].body, "AR-1A2B3C4D5E") || strings.Contains(outbox[0].body, "<for>") {
		t.Fatalf("body must carry the request number and escape the comment: %s", outbox[0].body)
	}
}

func TestMailDispatcherReportsSendFailures(t *testing.T) {
	d := NewMailDispatcher(func([]string, string, string) error { return errors.New("connection refused") })
	if err := d.StatusChanged(context.Background(), sampleStatusEvent()); err == nil {
		t.Fatal("expected the send failure to be returned")
	}
}

func TestKafkaDispatcherPublishesEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope struct {
			EventType string             `json:"event_type"`
			Payload   StatusChangedEvent `json:"payload"`
		}
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.EventType != "access_request.status_changed" {
			return errors.New("unexpected event type " + envelope.EventType)
		}
		if envelope.Payload.NewStatus != StatusDictApproved || envelope.Payload.Request.AccessRequestID != 501 {
			return errors.New("payload does not describe the transition")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(errors.New("leader not available"))

	d := NewKafkaDispatcher(producer, "access-requests.events")
	if err := d.StatusChanged(context.Background(), sampleStatusEvent()); err != nil {
		t.Fatalf("StatusChanged returned error: %v", err)
	}
	if err := d.RequestSubmitted(context.Background(), RequestSubmittedEvent{}); err == nil {
		t.Fatal("expected the broker failure to be returned")
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("unexpected producer state: %v", err)
	}
}

func TestInboxDispatcherStoresOneRowPerRecipient(t *testing.T) {
	steps := []*queryStep{
		expectExec("INSERT INTO `notifications`", 1),
	}
	db, state := newScriptedGormDB(t, steps)

	if err := NewInboxDispatcher(db).StatusChanged(context.Background(), sampleStatusEvent()); err != nil {
		t.Fatalf("StatusChanged returned error: %v", err)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}

	empty, emptyState := newScriptedGormDB(t, nil)
	if err := NewInboxDispatcher(empty).RequestSubmitted(context.Background(), RequestSubmittedEvent{}); err != nil {
		t.Fatalf("RequestSubmitted returned error: %v", err)
	}
	if len(emptyState.seen) != 0 {
		t.Fatal("no insert expected without recipients")
	}
}

func TestRecipientResolverRoutesToDivisionDirector(t *testing.T) {
	steps := []*queryStep{
		expectQuery("SELECT \\* FROM `departments`", []string{"department_id", "name", "hod_user_id", "division_id"},
			[]driver.Value{int64(7), "Finance", int64(12), int64(3)}),
		expectQuery("SELECT \\* FROM `divisions`", []string{"division_id", "name", "director_user_id"},
			[]driver.Value{int64(3), "Corporate Services", int64(30)}),
		expectQuery("SELECT \\* FROM `users` WHERE user_id IN", []string{"user_id", "name", "email", "phone"},
			[]driver.Value{int64(30), "Director", "director@example.org", nil}),
	}
	db, state := newScriptedGormDB(t, steps)

	recipients, extra, err := NewRecipientResolver(db).ForStatusChange(context.Background(),
		models.AccessRequest{DepartmentID: 7, RequesterID: 40}, StatusSubmitted, StatusHODReviewed)
	if err != nil {
		t.Fatalf("ForStatusChange returned error: %v", err)
	}
	if len(recipients) != 1 || recipients[0].UserID != 30 || recipients[0].Reason != RoleDivisionalDirector {
		t.Fatalf("unexpected recipients %+v", recipients)
	}
	if len(extra) != 0 {
		t.Fatalf("non-terminal status must not notify the requester, got %+v", extra)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestRecipientResolverNotifiesRequesterOnTerminalStatus(t *testing.T) {
	steps := []*queryStep{
		expectQuery("SELECT \\* FROM `users` WHERE user_id IN", []string{"user_id", "name", "email", "phone"},
			[]driver.Value{int64(40), "Grace", "not-an-email", "+254700000000"}),
	}
	db, state := newScriptedGormDB(t, steps)

	recipients, extra, err := NewRecipientResolver(db).ForStatusChange(context.Background(),
		models.AccessRequest{DepartmentID: 7, RequesterID: 40}, StatusPendingICTDirector, StatusDictRejected)
	if err != nil {
		t.Fatalf("ForStatusChange returned error: %v", err)
	}
	if len(recipients) != 0 {
		t.Fatalf("no approver follows a terminal status, got %+v", recipients)
	}
	if len(extra) != 1 || extra[0].Email != "" || extra[0].Phone == "" {
		t.Fatalf("requester must be reached by phone only, got %+v", extra)
	}
	if err := state.verifyComplete(); err != nil {
		t.Fatalf("unexpected remaining steps: %v", err)
	}
}

func TestLogDispatcherWritesStatusFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := NewLogDispatcher(zap.New(core))

	if err := d.StatusChanged(context.Background(), sampleStatusEvent()); err != nil {
		t.Fatalf("StatusChanged: %v", err)
	}

	entries := logs.FilterMessage("access request status event").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["new_status"] != string(StatusDictApproved) {
		t.Fatalf("new_status = %v", fields["new_status"])
	}
	if fields["access_request_id"] != int64(501) {
		t.Fatalf("access_request_id = %v", fields["access_request_id"])
	}
	if fields["recipients"] != int64(2) {
		t.Fatalf("recipients = %v, want requester and director", fields["recipients"])
	}
}
