// File: internal/infra/adapters/payment/mobilemoney_gateway.go
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
	"creator-paywall/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*MobileMoneyGateway)(nil)

// Keys of the custom_data object the provider echoes back on status calls.
const (
	MetaPurpose      = "purpose"
	MetaActorID      = "actor_id"
	MetaActorEmail   = "actor_email"
	MetaActorName    = "actor_name"
	MetaSubjectID    = "subject_id"
	MetaSubjectTitle = "subject_title"
)

// MobileMoneyGateway talks to the mobile-money checkout REST API.
type MobileMoneyGateway struct {
	client      *resty.Client
	merchantKey string
	secret      string
	currency    string
}

// NewMobileMoneyGateway builds a gateway against baseURL (e.g. https://api.provider.example/v1).
func NewMobileMoneyGateway(baseURL, merchantKey, secret, currency string, timeout time.Duration) (*MobileMoneyGateway, error) {
	if merchantKey == "" {
		return nil, errors.New("merchant key empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("X-Merchant-Key", merchantKey)
	return &MobileMoneyGateway{client: c, merchantKey: merchantKey, secret: secret, currency: currency}, nil
}

func (g *MobileMoneyGateway) Name() string { return "mobilemoney" }

type createResponse struct {
	ResponseCode string `json:"response_code"`
	ResponseText string `json:"response_text"`
	Token        string `json:"token"`
	CheckoutURL  string `json:"checkout_url"`
}

type statusResponse struct {
	Status      string         `json:"status"`
	Amount      json.Number    `json:"amount"`
	Reference   string         `json:"reference"`
	Description string         `json:"description"`
	CustomData  map[string]any `json:"custom_data"`
}

// Initiate calls POST /checkout/create and returns the checkout url and token.
func (g *MobileMoneyGateway) Initiate(ctx context.Context, req model.ChargeRequest) (model.Checkout, error) {
	if err := req.Validate(); err != nil {
		return model.Checkout{}, err
	}
	payload := map[string]any{
		"amount":      req.Amount,
		"currency":    g.currency,
		"description": describe(req),
		"payer_phone": req.PayerPhone,
		"return_url":  req.ReturnURL,
		"custom_data": map[string]string{
			MetaPurpose:      string(req.Purpose),
			MetaActorID:      req.ActorID,
			MetaActorEmail:   req.ActorEmail,
			MetaActorName:    req.ActorDisplayName,
			MetaSubjectID:    req.SubjectID,
			MetaSubjectTitle: req.SubjectTitle,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return model.Checkout{}, fmt.Errorf("marshal charge: %w", err)
	}

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Signature", Sign(body, g.secret)).
		SetBody(body).
		Post("/checkout/create")
	if err != nil {
		metrics.ObserveGateway("initiate", false, time.Since(start))
		return model.Checkout{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		metrics.ObserveGateway("initiate", false, time.Since(start))
		return model.Checkout{}, fmt.Errorf("%w: http %d", domain.ErrGatewayUnavailable, resp.StatusCode())
	}

	var out createResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		metrics.ObserveGateway("initiate", false, time.Since(start))
		return model.Checkout{}, fmt.Errorf("%w: decode create response: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.ResponseCode != "00" {
		metrics.ObserveGateway("initiate", false, time.Since(start))
		return model.Checkout{}, fmt.Errorf("mobilemoney: code %s: %s", out.ResponseCode, out.ResponseText)
	}
	metrics.ObserveGateway("initiate", true, time.Since(start))
	// Navigation depends on the url; a token alone is useless to the payer.
	if strings.TrimSpace(out.CheckoutURL) == "" {
		return model.Checkout{}, domain.ErrMissingRedirect
	}
	return model.Checkout{RedirectURL: out.CheckoutURL, Token: out.Token}, nil
}

// PollStatus calls GET /checkout/status/{token}.
func (g *MobileMoneyGateway) PollStatus(ctx context.Context, token string) (model.Settlement, error) {
	if token == "" {
		return model.Settlement{}, domain.ErrMissingToken
	}
	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("token", token).
		Get("/checkout/status/{token}")
	if err != nil {
		metrics.ObserveGateway("status", false, time.Since(start))
		return model.Settlement{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.IsError() {
		metrics.ObserveGateway("status", false, time.Since(start))
		return model.Settlement{}, fmt.Errorf("%w: http %d", domain.ErrGatewayUnavailable, resp.StatusCode())
	}
	metrics.ObserveGateway("status", true, time.Since(start))
	return ParseSettlement(resp.Body())
}

// ParseSettlement maps a status payload to a Settlement. Exposed for the
// notification handler, which receives the same document.
func ParseSettlement(raw []byte) (model.Settlement, error) {
	var out statusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return model.Settlement{}, fmt.Errorf("%w: decode status response: %v", domain.ErrGatewayUnavailable, err)
	}
	s := model.Settlement{
		State:       MapStatus(out.Status),
		Reference:   out.Reference,
		Description: out.Description,
		Metadata:    flatten(out.CustomData),
		Raw:         json.RawMessage(raw),
	}
	if out.Amount != "" {
		amount, err := parseAmount(out.Amount)
		if err != nil {
			return model.Settlement{}, fmt.Errorf("%w: bad amount %q", domain.ErrGatewayUnavailable, out.Amount)
		}
		s.Amount = amount
	}
	return s, nil
}

// MapStatus is conservative: unknown states are never success.
func MapStatus(status string) model.SettlementState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return model.SettlementPaid
	case "pending":
		return model.SettlementPending
	default:
		return model.SettlementFailed
	}
}

// Sign returns hex HMAC-SHA256 of body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func describe(req model.ChargeRequest) string {
	if req.Purpose == model.PurposeCreatorActivation {
		return "Creator account activation"
	}
	if req.SubjectTitle != "" {
		return req.SubjectTitle
	}
	return "Content unlock"
}

// parseAmount accepts integers and integral decimals ("500", "500.00").
func parseAmount(n json.Number) (int64, error) {
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != float64(int64(f)) {
		return 0, errors.New("not an integral amount")
	}
	return int64(f), nil
}

func flatten(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t != "" {
				out[k] = t
			}
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out
}
