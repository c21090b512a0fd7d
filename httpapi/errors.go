package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authcore"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var kindStatus = map[authcore.ErrorKind]int{
	authcore.KindUserExists:          http.StatusConflict,
	authcore.KindEmailTaken:          http.StatusConflict,
	authcore.KindInvalidCredentials:  http.StatusUnauthorized,
	authcore.KindAccountLocked:       http.StatusLocked,
	authcore.KindAccountInactive:     http.StatusForbidden,
	authcore.KindInvalidRefreshToken: http.StatusUnauthorized,
	authcore.KindTokenReuseDetected:  http.StatusUnauthorized,
	authcore.KindRefreshTokenExpired: http.StatusUnauthorized,
	authcore.KindUserInvalid:         http.StatusUnauthorized,
	authcore.KindInvalidPassword:     http.StatusForbidden,
	authcore.KindUserNotFound:        http.StatusNotFound,
	authcore.KindSessionNotFound:     http.StatusNotFound,
	authcore.KindInvalidInput:        http.StatusBadRequest,
}

// StatusFor maps an error kind to its HTTP status. Unknown kinds are 500.
func StatusFor(kind authcore.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := authcore.KindOf(err)
	status := StatusFor(kind)

	msg := authcore.ErrInternal.Msg
	var e *authcore.Error
	if status != http.StatusInternalServerError && errors.As(err, &e) {
		msg = e.Msg
	}
	if status == http.StatusInternalServerError {
		kind = authcore.KindInternal
		a.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	writeJSON(w, status, errorResponse{Error: kind.String(), Message: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:   authcore.KindInvalidInput.String(),
		Message: msg,
	})
}
