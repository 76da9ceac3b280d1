package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	pb "go.gazette.dev/streams/broker/protocol"
)

// Outcome labels of client metrics.
const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeFatal       = "fatal"
	outcomeInvalid     = "invalid"
	outcomeRejected    = "rejected"
	outcomeFailed      = "failed"
)

var (
	locatorConnectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streams_locator_connect_total",
		Help: "Counter of locator connection attempts made while creating an Environment, by outcome.",
	}, []string{"outcome"})
	locatorReconnectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streams_locator_reconnects_total",
		Help: "Counter of re-opens of a closed locator connection, by outcome.",
	}, []string{"outcome"})
	sessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streams_sessions_created_total",
		Help: "Counter of producer and consumer creations, by kind and outcome.",
	}, []string{"kind", "outcome"})
	controlResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streams_control_responses_total",
		Help: "Counter of broker control-plane responses, by operation and response code.",
	}, []string{"op", "code"})
)

func observeResponse(op string, code pb.ResponseCode) {
	controlResponsesTotal.WithLabelValues(op, code.String()).Inc()
}
