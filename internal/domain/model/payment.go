package model

import (
	"encoding/json"
	"strings"
	"time"

	"creator-paywall/internal/domain"
)

// Purpose tells what a charge pays for.
type Purpose string

const (
	PurposeContentPurchase   Purpose = "content_purchase"
	PurposeCreatorActivation Purpose = "creator_activation"
)

// ParsePurpose accepts the canonical values plus a few spellings seen in
// return urls ("purchase", "activation"). Unknown input yields "".
func ParsePurpose(s string) Purpose {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "content_purchase", "contentpurchase", "purchase", "content":
		return PurposeContentPurchase
	case "creator_activation", "creatoractivation", "activation", "creator":
		return PurposeCreatorActivation
	default:
		return ""
	}
}

func (p Purpose) Valid() bool {
	return p == PurposeContentPurchase || p == PurposeCreatorActivation
}

// ChargeRequest is built once per purchase attempt and handed to the gateway.
// Amount is in minor units of the configured currency.
type ChargeRequest struct {
	ActorID          string
	ActorEmail       string
	ActorDisplayName string
	Amount           int64
	Purpose          Purpose
	SubjectID        string // empty for creator activation
	SubjectTitle     string // display only
	PayerPhone       string
	ReturnURL        string
}

func (c ChargeRequest) Validate() error {
	if c.ActorID == "" || c.Amount <= 0 || c.PayerPhone == "" || c.ReturnURL == "" {
		return domain.ErrInvalidArgument
	}
	if !c.Purpose.Valid() {
		return domain.ErrInvalidArgument
	}
	if c.Purpose == PurposeContentPurchase && c.SubjectID == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

// Checkout is what the gateway hands back after a charge was accepted.
type Checkout struct {
	RedirectURL string
	Token       string
}

type SettlementState string

const (
	SettlementPaid    SettlementState = "paid"
	SettlementPending SettlementState = "pending"
	SettlementFailed  SettlementState = "failed"
)

// Settlement is the provider's answer for one token. Amount, Reference and
// Metadata are only meaningful when State is SettlementPaid.
type Settlement struct {
	State       SettlementState
	Amount      int64
	Reference   string
	Description string
	Metadata    map[string]string // custom fields echoed back by the provider
	Raw         json.RawMessage
}

func (s Settlement) IsPaid() bool { return s.State == SettlementPaid }

// Correlation is the resolved answer to "what was this payment for".
type Correlation struct {
	Purpose   Purpose
	ActorID   string
	SubjectID string
	Strategy  string // name of the fallback step that produced SubjectID
}

// IsGeneric reports a content purchase whose subject could not be recovered.
func (c Correlation) IsGeneric() bool {
	return c.Purpose == PurposeContentPurchase && c.SubjectID == ""
}

type TransactionStatus string

const TransactionStatusPaid TransactionStatus = "paid"

// Transaction records money that moved at the provider. Never updated.
type Transaction struct {
	ID                string
	ActorID           string
	SubjectID         *string
	BeneficiaryID     *string
	Amount            int64
	Kind              Purpose
	Status            TransactionStatus
	ProviderReference string
	CreatedAt         time.Time
}

// Purchase grants an actor access to one piece of content.
type Purchase struct {
	ID            string
	ActorID       string
	SubjectID     string
	TransactionID string
	AmountPaid    int64
	CreatedAt     time.Time
}

// CheckoutState is the short-lived handoff written at initiation and read back
// when the payer returns from the provider.
type CheckoutState struct {
	Purpose      Purpose   `json:"purpose"`
	ActorID      string    `json:"actor_id"`
	SubjectID    string    `json:"subject_id,omitempty"`
	SubjectTitle string    `json:"subject_title,omitempty"`
	Amount       int64     `json:"amount"`
	Token        string    `json:"token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OutcomeKind distinguishes the successful endings of a materialization.
type OutcomeKind string

const (
	OutcomeCompleted         OutcomeKind = "completed"
	OutcomeGeneric           OutcomeKind = "generic"
	OutcomeAlreadyPurchased  OutcomeKind = "already_purchased"
	OutcomePartialActivation OutcomeKind = "partial_activation"
)

// Outcome is what a confirmed payment turned into.
type Outcome struct {
	Kind        OutcomeKind
	SubjectID   string // empty means generic / no subject
	Reason      string // set for OutcomePartialActivation
	Transaction *Transaction
	Purchase    *Purchase
}

func (o Outcome) HasSubject() bool { return o.SubjectID != "" }
