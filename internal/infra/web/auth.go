package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"creator-paywall/internal/domain/model"
	"creator-paywall/internal/domain/ports/adapter"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct{ cfg AuthConfig }

var _ adapter.IdentityProvider = (*AuthManager)(nil)

func NewAuthManager(cfg AuthConfig) *AuthManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &AuthManager{cfg: cfg}
}

// ActorClaims carries the signed-in actor; Subject is the actor id.
type ActorClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Creator bool   `json:"creator,omitempty"`
	jwt.RegisteredClaims
}

func (c *ActorClaims) Actor() *model.Actor {
	return &model.Actor{ID: c.Subject, Email: c.Email, DisplayName: c.Name, IsCreator: c.Creator}
}

// Mint signs a session for actor and sets it as a cookie when w is non-nil.
func (a *AuthManager) Mint(w http.ResponseWriter, actor *model.Actor) (string, error) {
	if actor == nil || actor.ID == "" {
		return "", errors.New("empty actor")
	}
	now := time.Now()
	claims := ActorClaims{
		Email:   actor.Email,
		Name:    actor.DisplayName,
		Creator: actor.IsCreator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   actor.ID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}
	if w != nil {
		http.SetCookie(w, a.cookie(signed, int(a.cfg.TTL.Seconds())))
	}
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, a.cookie("", -1))
}

// Lax, not Strict: the payer comes back from the provider through a
// cross-site redirect and must still be signed in.
func (a *AuthManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*ActorClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type actorKey struct{}

// WithActor stores actor in ctx.
func WithActor(ctx context.Context, actor *model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// CurrentActor returns the actor put in ctx by Identify.
func (a *AuthManager) CurrentActor(ctx context.Context) (*model.Actor, bool) {
	return ActorFrom(ctx)
}

func ActorFrom(ctx context.Context) (*model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*model.Actor)
	return actor, ok && actor != nil
}

// Identify attaches the session actor when a valid token is present.
// Anonymous requests pass through untouched.
func (a *AuthManager) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := a.ParseFromRequest(r); err == nil {
			r = r.WithContext(WithActor(r.Context(), claims.Actor()))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireActor rejects requests without a session actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFrom(r.Context()); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
