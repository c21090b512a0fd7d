package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type profileRequest struct {
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

type profileResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
}

type authResponse struct {
	User            profileResponse `json:"user"`
	SessionID       string          `json:"session_id"`
	AccessToken     string          `json:"access_token"`
	AccessExpiresAt time.Time       `json:"access_expires_at"`
}

type refreshResponse struct {
	SessionID       string    `json:"session_id"`
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	ClientIP  string    `json:"client_ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type revokedResponse struct {
	Revoked int `json:"revoked"`
}

func toProfile(u user.User) profileResponse {
	return profileResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
	}
}

func toSession(s session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		ClientIP:  s.ClientIP,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// decode reads one JSON object from the body. Unknown fields and trailing
// data are rejected.
func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   authcore.KindInvalidInput.String(),
				Message: "request body too large",
			})
			return false
		}
		writeBadRequest(w, "malformed JSON body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeBadRequest(w, "unexpected data after JSON body")
		return false
	}
	return true
}

func (a *api) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    token,
		Path:     a.cookie.Path,
		MaxAge:   int(a.cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *api) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookie.Name,
		Value:    "",
		Path:     a.cookie.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *api) refreshCookie(r *http.Request) string {
	c, err := r.Cookie(a.cookie.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (a *api) writeAuth(w http.ResponseWriter, status int, res *authcore.AuthResult) {
	a.setRefreshCookie(w, res.RefreshToken)
	writeJSON(w, status, authResponse{
		User:            toProfile(res.User),
		SessionID:       res.Session.ID,
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (a *api) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.svc.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusCreated, res)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.writeAuth(w, http.StatusOK, res)
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.RefreshToken(r.Context(), a.refreshCookie(r))
	if err != nil {
		if authcore.KindOf(err) != authcore.KindInternal {
			a.clearRefreshCookie(w)
		}
		a.writeError(w, r, err)
		return
	}
	if res.RefreshToken != "" {
		a.setRefreshCookie(w, res.RefreshToken)
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		SessionID:       res.SessionID,
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
	})
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	a.svc.Logout(r.Context(), a.refreshCookie(r))
	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) changePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var req passwordRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.svc.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		a.writeError(w, r, err)
		return
	}
	// Every session, including this one, is revoked.
	a.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	u, err := a.svc.GetProfile(r.Context(), id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(u))
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var req profileRequest
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.svc.UpdateProfile(r.Context(), id.UserID, authcore.ProfileUpdate{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(u))
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	list, err := a.svc.GetSessions(r.Context(), id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSession(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) revokeSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	// Revoking an already revoked session is a no-op, not an error.
	if _, err := a.svc.RevokeSession(r.Context(), id.UserID, chi.URLParam(r, "id")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) revokeAllSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	n, err := a.svc.RevokeAllSessions(r.Context(), id.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revokedResponse{Revoked: n})
}
