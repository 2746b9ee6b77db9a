package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "access_request_transitions_total",
		Help: "Committed access request status transitions.",
	}, []string{"from", "to"})

	signaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "document_signatures_total",
		Help: "Sign calls by outcome (created, existing).",
	}, []string{"result"})

	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "access_request_events_dispatched_total",
		Help: "Events handed to the notification dispatcher.",
	}, []string{"event"})

	eventDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "access_request_event_dispatch_failures_total",
		Help: "Events whose dispatch failed or panicked.",
	}, []string{"event"})
)
