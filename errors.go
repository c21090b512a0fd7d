package authcore

import (
	"errors"
	"fmt"
)

// ErrorKind tags every failure the Service reports so callers can switch on
// it instead of comparing messages.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindUserExists
	KindInvalidCredentials
	KindAccountLocked
	KindAccountInactive
	KindInvalidRefreshToken
	KindTokenReuseDetected
	KindRefreshTokenExpired
	KindUserInvalid
	KindInvalidPassword
	KindUserNotFound
	KindEmailTaken
	KindSessionNotFound
	KindInvalidInput
	KindInternal
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindUserExists:          "user_exists",
	KindInvalidCredentials:  "invalid_credentials",
	KindAccountLocked:       "account_locked",
	KindAccountInactive:     "account_inactive",
	KindInvalidRefreshToken: "invalid_refresh_token",
	KindTokenReuseDetected:  "token_reuse_detected",
	KindRefreshTokenExpired: "refresh_token_expired",
	KindUserInvalid:         "user_invalid",
	KindInvalidPassword:     "invalid_password",
	KindUserNotFound:        "user_not_found",
	KindEmailTaken:          "email_taken",
	KindSessionNotFound:     "session_not_found",
	KindInvalidInput:        "invalid_input",
	KindInternal:            "internal",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Error is the concrete error type returned by Service and SessionManager.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind ErrorKind
	Msg  string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Msg
	}
	return e.Msg
}

// Unwrap exposes the infrastructure cause for logging.
func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUserExists          = &Error{Kind: KindUserExists, Msg: "user already exists"}
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials, Msg: "invalid credentials"}
	ErrAccountLocked       = &Error{Kind: KindAccountLocked, Msg: "account locked"}
	ErrAccountInactive     = &Error{Kind: KindAccountInactive, Msg: "account inactive"}
	ErrInvalidRefreshToken = &Error{Kind: KindInvalidRefreshToken, Msg: "invalid refresh token"}
	ErrTokenReuseDetected  = &Error{Kind: KindTokenReuseDetected, Msg: "refresh token reuse detected"}
	ErrRefreshTokenExpired = &Error{Kind: KindRefreshTokenExpired, Msg: "refresh token expired"}
	ErrUserInvalid         = &Error{Kind: KindUserInvalid, Msg: "user no longer valid"}
	ErrInvalidPassword     = &Error{Kind: KindInvalidPassword, Msg: "invalid password"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Msg: "user not found"}
	ErrEmailTaken          = &Error{Kind: KindEmailTaken, Msg: "email already taken"}
	ErrSessionNotFound     = &Error{Kind: KindSessionNotFound, Msg: "session not found"}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput, Msg: "invalid input"}

	// ErrInternal matches every infrastructure failure. Its message never
	// carries backend detail.
	ErrInternal = &Error{Kind: KindInternal, Msg: "internal error"}
)

// KindOf returns the kind carried by err. Errors from outside this package
// report KindInternal; nil reports KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func internalError(op string, cause error) error {
	return &Error{Kind: KindInternal, Msg: ErrInternal.Msg, Op: op, Err: cause}
}

func invalidInput(op, reason string) error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf("invalid input: %s", reason), Op: op}
}
