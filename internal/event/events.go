// Package event defines the domain events emitted after ledger mutations
// commit. Events are published to the in-process bus for downstream consumers.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DomainEvent carries the canonical shape of every domain event.
type DomainEvent struct {
	ID               string          `json:"id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	AffectedEntities []SourceRef     `json:"affected_entities"`
	Summary          string          `json:"summary"`
	Category         string          `json:"category"` // "operation", "wallet"
	Payload          json.RawMessage `json:"payload,omitempty"`
}

// SourceRef identifies an entity referenced by a domain event.
type SourceRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Role       string `json:"role"` // "subject", "source", "target"
}

// Publisher sends domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, evt DomainEvent)
}

func newID() string { return uuid.New().String() }

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// ── Operation events ─────────────────────────────────────────────────────────

// WalletSide is one wallet touched by an operation and its signed effect.
type WalletSide struct {
	WalletID   int64  `json:"wallet_id"`
	WalletName string `json:"wallet_name"`
	Role       string `json:"role"` // "subject", "source", "target"
	DeltaCents int64  `json:"delta_cents"`
}

// OperationPayload carries event-specific data for operation events.
type OperationPayload struct {
	OperationID    int64        `json:"operation_id"`
	Username       string       `json:"username"`
	OperationType  string       `json:"operation_type"`
	AmountCents    int64        `json:"amount_cents"`
	Sides          []WalletSide `json:"sides"`
	UpdatedFields  []string     `json:"updated_fields,omitempty"`
	MirrorDegraded bool         `json:"mirror_degraded,omitempty"`
}

func operationEvent(eventType, verb string, p OperationPayload) DomainEvent {
	refs := []SourceRef{
		{EntityType: "operation", EntityID: strconv.FormatInt(p.OperationID, 10), Role: "subject"},
	}
	for _, s := range p.Sides {
		refs = append(refs, SourceRef{EntityType: "wallet", EntityID: strconv.FormatInt(s.WalletID, 10), Role: s.Role})
	}
	return DomainEvent{
		ID:               newID(),
		EventType:        eventType,
		OccurredAt:       time.Now(),
		AffectedEntities: refs,
		Summary:          fmt.Sprintf("%s %d %s by %s", p.OperationType, p.OperationID, verb, p.Username),
		Category:         "operation",
		Payload:          mustJSON(p),
	}
}

func NewOperationCreated(p OperationPayload) DomainEvent {
	return operationEvent("operation_created", "created", p)
}

func NewOperationEdited(p OperationPayload) DomainEvent {
	return operationEvent("operation_edited", "edited", p)
}

func NewOperationDeleted(p OperationPayload) DomainEvent {
	return operationEvent("operation_deleted", "deleted", p)
}

// ── Wallet events ────────────────────────────────────────────────────────────

// WalletPayload carries event-specific data for wallet events.
type WalletPayload struct {
	WalletID     int64  `json:"wallet_id"`
	Name         string `json:"name"`
	PreviousName string `json:"previous_name,omitempty"`
}

func NewWalletCreated(p WalletPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "wallet_created",
		OccurredAt: time.Now(),
		AffectedEntities: []SourceRef{
			{EntityType: "wallet", EntityID: strconv.FormatInt(p.WalletID, 10), Role: "subject"},
		},
		Summary:  fmt.Sprintf("Wallet %q created", p.Name),
		Category: "wallet",
		Payload:  mustJSON(p),
	}
}

func NewWalletRenamed(p WalletPayload) DomainEvent {
	return DomainEvent{
		ID:         newID(),
		EventType:  "wallet_renamed",
		OccurredAt: time.Now(),
		AffectedEntities: []SourceRef{
			{EntityType: "wallet", EntityID: strconv.FormatInt(p.WalletID, 10), Role: "subject"},
		},
		Summary:  fmt.Sprintf("Wallet %q renamed to %q", p.PreviousName, p.Name),
		Category: "wallet",
		Payload:  mustJSON(p),
	}
}
