package web

import (
	"context"
	"errors"
	"net/http"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/infra/i18n"
	"creator-paywall/internal/usecase"
)

// Links maps recovery actions to front-end urls.
type Links struct {
	Home      string
	Purchases string
	Checkout  string
	Support   string
}

func (l Links) href(a usecase.RecoveryAction) string {
	switch a {
	case usecase.ActionViewPurchases:
		return l.Purchases
	case usecase.ActionRetryCheckout:
		return l.Checkout
	case usecase.ActionContactSupport:
		return l.Support
	default:
		return l.Home
	}
}

// StatusView is a reconciliation result rendered for people.
type StatusView struct {
	State                string `json:"state"`
	Label                string `json:"label"`
	Description          string `json:"description"`
	Action               string `json:"action"`
	ActionLabel          string `json:"action_label"`
	ActionURL            string `json:"action_url"`
	RedirectTo           string `json:"redirect_to,omitempty"`
	RedirectAfterSeconds int    `json:"redirect_after_seconds,omitempty"`
	SubjectID            string `json:"subject_id,omitempty"`
	Outcome              string `json:"outcome,omitempty"`
	Reference            string `json:"reference,omitempty"`
}

func NewStatusView(res usecase.ReconcileResult, tr *i18n.Translator, links Links) StatusView {
	v := StatusView{
		State:       string(res.State),
		Label:       tr.T(res.LabelKey()),
		Action:      string(res.Action),
		ActionLabel: tr.T("action." + string(res.Action)),
		ActionURL:   links.href(res.Action),
		RedirectTo:  res.RedirectTo,
	}
	if res.RedirectAfter > 0 {
		v.RedirectAfterSeconds = int(res.RedirectAfter.Seconds())
	}
	if o := res.Outcome; o != nil {
		v.SubjectID = o.SubjectID
		v.Outcome = string(o.Kind)
		if o.Transaction != nil {
			v.Reference = o.Transaction.ProviderReference
		}
	}
	if res.MsgKey == usecase.MsgPartial {
		v.Description = tr.T(res.DescriptionKey(), v.Reference)
	} else {
		v.Description = tr.T(res.DescriptionKey())
	}
	return v
}

// StatusCode is the HTTP status for a terminal state. Only Error is a
// non-2xx: a declined payment is a valid answer.
func StatusCode(res usecase.ReconcileResult) int {
	if res.State != usecase.StateError {
		return http.StatusOK
	}
	switch {
	case errors.Is(res.Err, domain.ErrMissingToken):
		return http.StatusBadRequest
	case errors.Is(res.Err, domain.ErrGatewayUnavailable), errors.Is(res.Err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
