// Package models defines the two record families of the verification ledger:
// immutable timeline entries partitioned by user, and the single mutable meta
// projection per reference. Both share one physical table and one secondary
// index keyed by reference.
package models

import "time"

// RecordType discriminates rows within the shared ledger table.
type RecordType string

const (
	TypeVerificationRequest RecordType = "verification_request"
	TypeWebhookEvent        RecordType = "webhook_event"
	TypeStatusChange        RecordType = "status_change"
	TypeMeta                RecordType = "meta"
	TypeRateAlert           RecordType = "rate_alert"
)

// Provider event names the ledger reasons about. Anything else is carried
// through verbatim but treated as neither active nor accepted.
const (
	EventAccepted      = "verification.accepted"
	EventPending       = "request.pending"
	EventReceived      = "request.received"
	EventReviewPending = "review.pending"
	EventStatusChanged = "verification.status.changed"
	StatusUnknown      = "unknown"
)

// activeEvents are the states in which an attempt is still in progress and
// eligible for reuse. Declined/cancelled/expired are deliberately absent: they
// fall through so the next start call mints a fresh reference.
var activeEvents = map[string]struct{}{
	EventPending:       {},
	EventReceived:      {},
	EventReviewPending: {},
	EventStatusChanged: {},
}

// IsActive reports whether the event denotes an in-progress attempt.
func IsActive(event string) bool {
	_, ok := activeEvents[event]
	return ok
}

// MetaPartitionKey returns the partition key of a reference's meta projection.
func MetaPartitionKey(reference string) string {
	return "meta_" + reference
}

// MetaSortKey is the fixed sort key of every meta projection row.
const MetaSortKey = "meta"

// Record is the physical row shape shared by both families. Timeline entries
// use (userId, created_at) as the key pair; meta projections use
// (meta_<reference>, "meta"). The reference attribute feeds the secondary
// index so all rows of one attempt can be fetched together.
type Record struct {
	PartitionKey    string         `json:"pk" dynamodbav:"pk"`
	SortKey         string         `json:"sk" dynamodbav:"sk"`
	Type            RecordType     `json:"type" dynamodbav:"type"`
	Reference       string         `json:"reference,omitempty" dynamodbav:"reference,omitempty"`
	UserID          string         `json:"userId,omitempty" dynamodbav:"userId,omitempty"`
	Event           string         `json:"event,omitempty" dynamodbav:"event,omitempty"`
	Status          string         `json:"status,omitempty" dynamodbav:"status,omitempty"`
	LastEvent       string         `json:"lastEvent,omitempty" dynamodbav:"lastEvent,omitempty"`
	LastEventAt     string         `json:"lastEventAt,omitempty" dynamodbav:"lastEventAt,omitempty"`
	VerificationURL string         `json:"verificationUrl,omitempty" dynamodbav:"verificationUrl,omitempty"`
	Language        string         `json:"language,omitempty" dynamodbav:"language,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty" dynamodbav:"created_at,omitempty"`
	Payload         map[string]any `json:"payload,omitempty" dynamodbav:"payload,omitempty"`
}

// Timestamp renders t in the ledger's ISO-8601 sort-key format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// NewTimelineEntry builds an immutable historical fact for the user partition.
func NewTimelineEntry(recordType RecordType, userID, reference, event string, at time.Time) Record {
	return Record{
		PartitionKey: userID,
		SortKey:      Timestamp(at),
		Type:         recordType,
		Reference:    reference,
		UserID:       userID,
		Event:        event,
		CreatedAt:    Timestamp(at),
	}
}

// NewMetaProjection builds the current-status row for a reference.
func NewMetaProjection(userID, reference, event string, at time.Time) Record {
	ts := Timestamp(at)
	return Record{
		PartitionKey: MetaPartitionKey(reference),
		SortKey:      MetaSortKey,
		Type:         TypeMeta,
		Reference:    reference,
		UserID:       userID,
		Status:       event,
		LastEvent:    event,
		LastEventAt:  ts,
		CreatedAt:    ts,
	}
}

// Resolution is the session resolver's verdict for a user.
type Resolution struct {
	AlreadyValidated bool   `json:"alreadyValidated,omitempty"`
	AlreadyHasActive bool   `json:"alreadyHasActive,omitempty"`
	Reference        string `json:"reference"`
	Status           string `json:"status"`
	VerificationURL  string `json:"verificationUrl,omitempty"`
}

// SessionResult is returned to the caller after start-session. Exactly one of
// the reuse flags is set when an existing attempt was returned; both are false
// for a freshly created session.
type SessionResult struct {
	AlreadyValidated bool   `json:"alreadyValidated,omitempty"`
	AlreadyHasActive bool   `json:"alreadyHasActive,omitempty"`
	Reference        string `json:"reference"`
	Status           string `json:"status,omitempty"`
	VerificationURL  string `json:"verificationUrl,omitempty"`
}

// WebhookResult is the soft-failure outcome of webhook reconciliation.
type WebhookResult struct {
	OK        bool   `json:"ok"`
	Reference string `json:"reference,omitempty"`
	Event     string `json:"event,omitempty"`
}

// RecordBundle groups every ledger row known for one reference.
type RecordBundle struct {
	Reference     string    `json:"reference"`
	Meta          *Record   `json:"meta,omitempty"`
	Requests      []Record  `json:"verificationRequests"`
	WebhookEvents []Record  `json:"webhookEvents"`
	StatusChanges []Record  `json:"statusChanges"`
}
