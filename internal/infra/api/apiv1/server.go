package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/infra/i18n"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/web"
	"creator-paywall/internal/usecase"
)

type Options struct {
	SessionCookie string
	SessionTTL    time.Duration
	SecureCookie  bool
	Links         web.Links
}

type Server struct {
	checkout  usecase.CheckoutUseCase
	reconcile usecase.ReconcileUseCase
	tr        *i18n.Translator
	opts      Options
	log       *zerolog.Logger
}

func NewServer(checkout usecase.CheckoutUseCase, reconcile usecase.ReconcileUseCase, tr *i18n.Translator, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	if opts.SessionCookie == "" {
		opts.SessionCookie = "checkout_session"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	return &Server{checkout: checkout, reconcile: reconcile, tr: tr, opts: opts, log: logger}
}

// RegisterAPIV1 mounts the JSON endpoints at absolute /api/v1 paths.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/payment/return", s.PaymentReturn)
		r.Group(func(r chi.Router) {
			r.Use(web.RequireActor)
			r.Post("/checkout", s.Checkout)
			r.Get("/purchases", s.ListPurchases)
		})
	})
}

type CheckoutRequest struct {
	Purpose    string `json:"purpose"`
	ContentID  string `json:"content_id"`
	PayerPhone string `json:"payer_phone"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
	Token       string `json:"token"`
}

type Purchase struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subject_id"`
	TransactionID string    `json:"transaction_id"`
	AmountPaid    int64     `json:"amount_paid"`
	CreatedAt     time.Time `json:"created_at"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Checkout opens a charge. JSON callers get the redirect url back; HTML form
// posts are redirected to the provider directly.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, _ := web.ActorFrom(r.Context())

	var req CheckoutRequest
	form := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
	if form {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid form")
			return
		}
		req = CheckoutRequest{Purpose: r.PostForm.Get("purpose"), ContentID: r.PostForm.Get("content_id"), PayerPhone: r.PostForm.Get("payer_phone")}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return
	}

	purpose := model.ParsePurpose(req.Purpose)
	if purpose == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown purpose")
		return
	}

	co, err := s.checkout.Initiate(r.Context(), actor, usecase.InitiateInput{
		Purpose:    purpose,
		ContentID:  req.ContentID,
		PayerPhone: req.PayerPhone,
		SessionID:  web.CheckoutSession(w, r, s.opts.SessionCookie, s.opts.SessionTTL, s.opts.SecureCookie, true),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if form {
		http.Redirect(w, r, co.RedirectURL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResponse{RedirectURL: co.RedirectURL, Token: co.Token})
}

// PaymentReturn is the JSON twin of the HTML return page, for front ends
// that render the status themselves.
func (s *Server) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := s.reconcile.Reconcile(r.Context(), usecase.ReconcileInput{
		Token:     q.Get(usecase.QueryToken),
		Query:     q,
		SessionID: web.CheckoutSession(w, r, s.opts.SessionCookie, s.opts.SessionTTL, s.opts.SecureCookie, false),
		Source:    "return",
	})
	writeJSON(w, web.StatusCode(res), web.NewStatusView(res, s.tr, s.opts.Links))
}

func (s *Server) ListPurchases(w http.ResponseWriter, r *http.Request) {
	actor, _ := web.ActorFrom(r.Context())
	list, err := s.checkout.ListPurchases(r.Context(), actor.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	items := make([]Purchase, 0, len(list))
	for _, p := range list {
		items = append(items, Purchase{
			ID:            p.ID,
			SubjectID:     p.SubjectID,
			TransactionID: p.TransactionID,
			AmountPaid:    p.AmountPaid,
			CreatedAt:     p.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Items []Purchase `json:"items"`
	}{Items: items})
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyPurchased):
		writeError(w, http.StatusConflict, "already_purchased", err.Error())
	case errors.Is(err, domain.ErrAlreadyCreator):
		writeError(w, http.StatusConflict, "already_creator", err.Error())
	case errors.Is(err, domain.ErrContentUnavailable), errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrOwnContent), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnresolvedActor):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrMissingRedirect):
		writeError(w, http.StatusBadGateway, "gateway_error", "payment provider unavailable")
	default:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("api: unexpected error")
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, c, msg string) {
	writeJSON(w, code, Error{Code: c, Message: msg})
}
