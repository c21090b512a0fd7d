package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/session"
	"github.com/MrEthical07/authcore/user"
)

// AuthResult is returned by [Service.Register] and [Service.Login]. The
// refresh token is a bearer secret and belongs in an HttpOnly cookie, never
// in a response body readable by scripts.
type AuthResult struct {
	User            user.User
	Session         session.Session
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// RefreshResult is returned by [Service.RefreshToken]. RefreshToken is empty
// unless SessionConfig.RotateOnRefresh is set, in which case the presented
// token is no longer valid.
type RefreshResult struct {
	SessionID       string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
}

// Identity is what a valid access token proves.
type Identity struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// ProfileUpdate lists the profile fields a user may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Email       *string
	DisplayName *string
}

// Rotation is the outcome of a successful [SessionManager.Rotate].
type Rotation struct {
	Session session.Session
	User    user.User

	// RefreshToken is set only when rotation-on-refresh is enabled.
	RefreshToken string
}

// PasswordHasher derives and checks password digests. *password.Argon2
// satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// upgradeChecker is implemented by hashers that can tell when a digest was
// produced under weaker cost parameters.
type upgradeChecker interface {
	NeedsUpgrade(digest string) (bool, error)
}
