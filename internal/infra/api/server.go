package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"creator-paywall/internal/domain"
	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/infra/adapters/payment"
	"creator-paywall/internal/infra/api/apiv1"
	"creator-paywall/internal/infra/i18n"
	"creator-paywall/internal/infra/logging"
	"creator-paywall/internal/infra/metrics"
	"creator-paywall/internal/infra/web"
	"creator-paywall/internal/usecase"
)

const maxWebhookBody = 64 << 10

type Options struct {
	ReturnPath     string
	WebhookPath    string
	WebhookSecret  string
	SessionCookie  string
	SessionTTL     time.Duration
	SecureCookie   bool
	RequestTimeout time.Duration
	Links          web.Links
	// DevGateway, when set, serves a fake provider page at /dev/pay/{token}.
	DevGateway *payment.NoopPaymentGateway
}

// HealthFunc reports whether backing stores are reachable.
type HealthFunc func(ctx context.Context) error

// Server serves the browser return page, provider notifications and the
// JSON API mounted from apiv1.
type Server struct {
	reconcile usecase.ReconcileUseCase
	checkout  usecase.CheckoutUseCase
	auth      *web.AuthManager
	tr        *i18n.Translator
	health    HealthFunc
	opts      Options
	log       *zerolog.Logger
}

func NewServer(
	reconcile usecase.ReconcileUseCase,
	checkout usecase.CheckoutUseCase,
	auth *web.AuthManager,
	tr *i18n.Translator,
	health HealthFunc,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.ReturnPath == "" {
		opts.ReturnPath = "/payment/return"
	}
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/webhook/payment"
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &Server{
		reconcile: reconcile,
		checkout:  checkout,
		auth:      auth,
		tr:        tr,
		health:    health,
		opts:      opts,
		log:       logger,
	}
}

// Router builds the full handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(s.opts.RequestTimeout),
		s.auth.Identify,
	)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get(s.opts.ReturnPath, s.handleReturn)
	r.Post(s.opts.WebhookPath, s.handleWebhook)
	if s.opts.DevGateway != nil {
		r.Get("/dev/pay/{token}", s.handleDevPay)
	}

	apiv1.RegisterAPIV1(r, apiv1.NewServer(s.checkout, s.reconcile, s.tr, apiv1.Options{
		SessionCookie: s.opts.SessionCookie,
		SessionTTL:    s.opts.SessionTTL,
		SecureCookie:  s.opts.SecureCookie,
		Links:         s.opts.Links,
	}, s.log))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := s.reconcile.Reconcile(r.Context(), usecase.ReconcileInput{
		Token:     q.Get(usecase.QueryToken),
		Query:     q,
		SessionID: web.CheckoutSession(w, r, s.opts.SessionCookie, s.opts.SessionTTL, s.opts.SecureCookie, false),
		Source:    "return",
	})
	s.renderHTML(w, web.StatusCode(res), web.NewStatusView(res, s.tr, s.opts.Links))
}

// handleWebhook reconciles on provider notification. The notification only
// names the token; the settlement itself is always polled.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	n, err := payment.ParseNotification(body, r.Header.Get("X-Signature"), s.opts.WebhookSecret)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, domain.ErrInvalidSignature) {
			code = http.StatusUnauthorized
		}
		log.Warn().Err(err).Msg("webhook rejected")
		http.Error(w, err.Error(), code)
		return
	}

	res := s.reconcile.Reconcile(r.Context(), usecase.ReconcileInput{Token: n.Token, Source: "webhook"})
	w.Header().Set("Content-Type", "application/json")
	// non-2xx makes the provider retry later
	w.WriteHeader(web.StatusCode(res))
	_ = json.NewEncoder(w).Encode(map[string]string{"state": string(res.State)})
}

// handleDevPay stands in for the provider checkout page in dev mode:
// ?status=paid|pending|failed settles the charge and sends the browser back.
func (s *Server) handleDevPay(w http.ResponseWriter, r *http.Request) {
	state := model.SettlementState(r.URL.Query().Get("status"))
	switch state {
	case model.SettlementPaid, model.SettlementPending, model.SettlementFailed:
	case "":
		state = model.SettlementPaid
	default:
		http.Error(w, "unknown status", http.StatusBadRequest)
		return
	}
	back, ok := s.opts.DevGateway.Complete(chi.URLParam(r, "token"), state)
	if !ok {
		http.NotFound(w, r)
		return
	}
	logging.With(r.Context(), s.log).Info().Str("state", string(state)).Msg("dev: charge completed")
	http.Redirect(w, r, back, http.StatusSeeOther)
}

var page = template.Must(template.New("status").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
{{if .View.RedirectTo}}<meta http-equiv="refresh" content="{{.View.RedirectAfterSeconds}};url={{.View.RedirectTo}}" />{{end}}
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.success{color:#057a55} .pending{color:#b7791f} .failed,.error{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666}
</style>
</head>
<body>
<div class="card" data-state="{{.View.State}}">
  <h2 class="{{.View.State}}">{{.View.Label}}</h2>
  <p>{{.View.Description}}</p>
  <a class="btn" href="{{.View.ActionURL}}">{{.View.ActionLabel}}</a>
  {{if .View.RedirectTo}}<div class="small">{{.Notice}}</div>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderHTML(w http.ResponseWriter, code int, v web.StatusView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		Lang   string
		Title  string
		Notice string
		View   web.StatusView
	}{
		Lang:   s.tr.Lang(),
		Title:  s.tr.T("page.title"),
		Notice: s.tr.T("redirect.notice", v.RedirectAfterSeconds),
		View:   v,
	})
}
