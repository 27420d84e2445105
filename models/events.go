package models

import "time"

// FailureKind classifies a venue fetch failure. The kind decides both the
// remediation message and whether the notifier is involved: transient noise
// stays in the logs, auth and geo failures are user-actionable and escalate.
type FailureKind string

const (
	FailureTransient FailureKind = "transient" // timeout, rate limit, 5xx
	FailureAuth      FailureKind = "auth"      // bad credentials, IP not whitelisted
	FailureGeo       FailureKind = "geo"       // region block, firewall rejection
	FailureData      FailureKind = "data"      // crossed book, unparsable payload
)

// Escalates reports whether this failure should reach the notification sink.
func (k FailureKind) Escalates() bool {
	return k == FailureAuth || k == FailureGeo
}

// FailureEvent is a structured record of one excluded (exchange, pair)
// fetch. The engine emits these; formatting and delivery belong to the sink.
type FailureEvent struct {
	Exchange string      `json:"exchange"`
	Pair     string      `json:"pair,omitempty"`
	Kind     FailureKind `json:"kind"`
	Message  string      `json:"message"`
	At       time.Time   `json:"at"`
}
