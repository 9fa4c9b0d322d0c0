// Package authtest emite tokens assinados para testes de handlers.
package authtest

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-ledger/internal/shared/auth"
)

const (
	Secret = "test-secret-test-secret-test-secret!"
	Issuer = "auth.test"
)

// Verifier aceita os tokens emitidos por Token
func Verifier() *auth.Verifier { return auth.NewVerifier(Secret, Issuer) }

// Token devolve o header Authorization para o usuário e papel informados
func Token(t *testing.T, sub, role string) string {
	t.Helper()
	sig, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(Secret)},
		(&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	c := struct {
		jwt.Claims
		Role string `json:"role,omitempty"`
	}{
		Claims: jwt.Claims{
			Subject:  sub,
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	raw, err := jwt.Signed(sig).Claims(c).Serialize()
	require.NoError(t, err)
	return "Bearer " + raw
}
