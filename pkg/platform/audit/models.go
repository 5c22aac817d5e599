package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers custody movements: tokens entering or
	// leaving custody, and deployed token contracts.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers changes to who may withdraw, and failed
	// withdrawals or deployments.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers registry bookkeeping.
	CategoryOperations EventCategory = "operations"
)

// LogVersion is the version written into every EVENT_JSON log line.
const LogVersion = "1.0.0"

// logPrefix marks a structured event line in service logs.
const logPrefix = "EVENT_JSON:"

type AuditEvent string

const (
	// Factory events
	EventAddMunicipality AuditEvent = "add_municipality"
	EventAddProject      AuditEvent = "add_project"
	EventAddTokenVersion AuditEvent = "add_token_version"
	EventAddProjectToken AuditEvent = "add_project_token"
	EventDeployFailed    AuditEvent = "deploy_failed"

	// Custody events
	EventAddToken      AuditEvent = "add_token"
	EventSendToken     AuditEvent = "send_token"
	EventSendFailed    AuditEvent = "send_token_failed"
	EventLinkAccount   AuditEvent = "link_account"
	EventChangeAccount AuditEvent = "change_account"

	// Membership events
	EventAddUser AuditEvent = "add_user"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAddProjectToken: CategoryCompliance,
	EventAddToken:        CategoryCompliance,
	EventSendToken:       CategoryCompliance,

	EventLinkAccount:   CategorySecurity,
	EventChangeAccount: CategorySecurity,
	EventDeployFailed:  CategorySecurity,
	EventSendFailed:    CategorySecurity,

	EventAddMunicipality: CategoryOperations,
	EventAddProject:      CategoryOperations,
	EventAddTokenVersion: CategoryOperations,
	EventAddUser:         CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Subject is the key the
// event is filed under: municipality, owner or user id.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Service   string            `json:"service"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	ActorID   string            `json:"actor_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Data      map[string]string `json:"data"`
}

type logLine struct {
	Version string              `json:"version"`
	Event   string              `json:"event"`
	Data    []map[string]string `json:"data"`
}

// LogLine renders the event in the EVENT_JSON wire format indexers consume.
func (e Event) LogLine() string {
	data := e.Data
	if data == nil {
		data = map[string]string{}
	}
	b, err := json.Marshal(logLine{Version: LogVersion, Event: e.Action, Data: []map[string]string{data}})
	if err != nil {
		return logPrefix + "{}"
	}
	return logPrefix + string(b)
}

// WithMemo adds the optional memo to data.
func WithMemo(data map[string]string, memo *string) map[string]string {
	if memo != nil {
		data["memo"] = *memo
	}
	return data
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// OutboxEntry is an event waiting to be relayed to the event stream.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Outbox is the relay's view of a Store.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}
