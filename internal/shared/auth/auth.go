package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

const RoleAdmin = "admin"

// Identity é o usuário autenticado da requisição.
// Vem sempre do token verificado, nunca de campos enviados pelo cliente.
type Identity struct {
	UserID string
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type ctxKey struct{}

// WithIdentity injeta a identidade no contexto.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext recupera a identidade injetada pelo Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

type claims struct {
	jwt.Claims
	Role string `json:"role"`
}

// Verifier valida JWTs HS256 emitidos pelo provedor de autenticação.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second, now: time.Now}
}

// Verify devolve a identidade do token ou apperr.Unauthorized.
func (v *Verifier) Verify(raw string) (Identity, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return Identity{}, apperr.Unauthorized.With("malformed token").Wrap(err)
	}

	var c claims
	if err := tok.Claims(v.secret, &c); err != nil {
		return Identity{}, apperr.Unauthorized.With("invalid signature").Wrap(err)
	}

	exp := jwt.Expected{Time: v.now()}
	if v.issuer != "" {
		exp.Issuer = v.issuer
	}
	if err := c.ValidateWithLeeway(exp, v.leeway); err != nil {
		return Identity{}, apperr.Unauthorized.With("token rejected").Wrap(err)
	}
	if c.Subject == "" {
		return Identity{}, apperr.Unauthorized.With("token without subject")
	}
	if c.Expiry == nil {
		return Identity{}, apperr.Unauthorized.With("token without expiry")
	}

	return Identity{UserID: c.Subject, Role: c.Role}, nil
}

// Middleware exige "Authorization: Bearer <jwt>" e injeta a Identity no contexto.
// onError escreve a resposta de erro (normalmente httpx.WriteError).
func Middleware(v *Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || raw == "" {
				onError(w, r, apperr.Unauthorized)
				return
			}

			id, err := v.Verify(strings.TrimSpace(raw))
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin bloqueia quem não tem role admin. Deve vir depois de Middleware.
func RequireAdmin(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				onError(w, r, apperr.Unauthorized)
				return
			}
			if !id.IsAdmin() {
				onError(w, r, apperr.Forbidden.With("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
