// errors стандартизирует ответы об ошибках HTTP-слоя auth-сервиса.
// На вход принимает ошибку сервисного слоя, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Все ошибки учётных данных (битый, истёкший, отозванный токен, удалённый
// аккаунт, отказ провайдера) сводятся к одному ответу 401: клиент не должен
// различать причины. Конкретная причина остаётся в логах.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/club-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// MessageInvalidSession — единое сообщение для всех отказов по учётным данным.
const MessageInvalidSession = "invalid or expired session"

// ErrBadRequest — тело или параметры запроса не разбираются.
var ErrBadRequest = errors.New("bad request")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку сервисного слоя в HTTP-статус и унифицированный ответ.
//
// Маппинг:
//   - ошибки учётных данных (service.IsCredentialError) -> 401/unauthenticated;
//   - service.ErrDependencyUnavailable -> 503/unavailable;
//   - service.ErrAlreadyRegistered -> 409/already_exists;
//   - service.ErrInvalidNickname, ErrBadRequest -> 400/invalid_argument;
//   - context.Canceled -> 499, context.DeadlineExceeded -> 504;
//   - err == nil и прочее -> 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return respond(http.StatusInternalServerError, "internal", "internal error")
	case service.IsCredentialError(err):
		return respond(http.StatusUnauthorized, "unauthenticated", MessageInvalidSession)
	case errors.Is(err, service.ErrDependencyUnavailable):
		return respond(http.StatusServiceUnavailable, "unavailable", "service unavailable")
	case errors.Is(err, service.ErrAlreadyRegistered):
		return respond(http.StatusConflict, "already_exists", "already registered")
	case errors.Is(err, service.ErrInvalidNickname):
		return respond(http.StatusBadRequest, "invalid_argument", "invalid nickname")
	case errors.Is(err, ErrBadRequest):
		return respond(http.StatusBadRequest, "invalid_argument", "invalid argument")
	case errors.Is(err, context.Canceled):
		return respond(StatusClientClosedRequest, "canceled", "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return respond(http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded")
	default:
		return respond(http.StatusInternalServerError, "internal", "internal error")
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func respond(status int, code, msg string) (int, ErrorResponse) {
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}
