// Package httpx reúne helpers HTTP comuns aos serviços: JSON, validação e mapeamento de erros.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/shared/metrics"
)

const maxBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrorBody é o corpo padrão de erro
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON serializa a resposta em JSON e define o status HTTP
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StatusFor mapeia a taxonomia de erros para status HTTP
func StatusFor(err error) int {
	if errors.Is(err, apperr.InsufficientBalance) {
		return http.StatusPaymentRequired
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindPrecondition:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// WriteError escreve o erro no formato padrão. Erros internos não vazam detalhes.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status := StatusFor(err)
	code := apperr.CodeOf(err)
	metrics.DomainErrors.WithLabelValues(code).Inc()

	msg := "internal error"
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Msg
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, status, ErrorBody{Error: code, Message: msg})
}

// Decode lê o corpo JSON em dst e valida as tags `validate`.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput.With("malformed json: %v", err)
	}
	return Validate(dst)
}

// Validate aplica as regras `validate` de v.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make([]string, 0, len(ve))
			for _, fe := range ve {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return apperr.InvalidInput.With("invalid fields: %s", strings.Join(fields, ", "))
		}
		return apperr.InvalidInput.Wrap(err)
	}
	return nil
}

// Page são os parâmetros de paginação de listagens
type Page struct {
	Limit  int
	Offset int
}

// PageFrom lê ?limit&offset com defaults e teto.
func PageFrom(r *http.Request) Page {
	p := Page{Limit: 50}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		p.Limit = min(v, 200)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}
