package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DefaultMaxPasswordBytes bounds hashing work when MaxLength is zero.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrPasswordTooShort is returned by Hash when the input is below MinLength.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash and Verify for inputs over MaxLength.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHash is returned when a stored digest cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config holds argon2id cost parameters and input length limits. Lengths are
// counted in bytes of the raw input; no Unicode normalization is applied.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int // zero selects DefaultMaxPasswordBytes
}

// DefaultConfig returns 64 MiB memory, 3 iterations, parallelism 1,
// a 16-byte salt, a 32-byte key and an 8-byte minimum password.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
		MinLength:   8,
		MaxLength:   DefaultMaxPasswordBytes,
	}
}

// Floors shared by config validation and digest parsing. A digest weaker than
// these is treated as corrupt rather than verified.
const (
	floorMemoryKiB = 8 * 1024
	floorSaltBytes = 16
	floorKeyBytes  = 16
	floorTime      = 1
	floorThreads   = 1
)

func (c Config) validate() error {
	checks := []struct {
		bad bool
		msg string
	}{
		{c.Memory < floorMemoryKiB, "password memory must be >= 8192 KiB"},
		{c.Time < floorTime, "password time must be >= 1"},
		{c.Parallelism < floorThreads, "password parallelism must be >= 1"},
		{c.SaltLength < floorSaltBytes, "password salt length must be >= 16"},
		{c.KeyLength < floorKeyBytes, "password key length must be >= 16"},
		{c.MinLength < 1, "password min length must be >= 1"},
		{c.MaxLength < c.MinLength, "password max length must be >= min length"},
	}
	for _, chk := range checks {
		if chk.bad {
			return errors.New(chk.msg)
		}
	}
	return nil
}

func (c Config) cost() cost {
	return cost{memory: c.Memory, time: c.Time, threads: c.Parallelism, keyLen: c.KeyLength}
}

// Argon2 hashes and verifies passwords in PHC string format.
type Argon2 struct {
	cfg Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MaxLength == 0 {
		cfg.MaxLength = DefaultMaxPasswordBytes
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a digest for password with a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	switch {
	case len(password) < a.cfg.MinLength:
		return "", ErrPasswordTooShort
	case len(password) > a.cfg.MaxLength:
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	c := a.cfg.cost()
	return digest{cost: c, salt: salt, key: c.derive(password, salt)}.String(), nil
}

// Verify reports whether password matches encoded. The cost recorded in the
// digest is used, so digests created under older settings keep verifying.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	if len(password) > a.cfg.MaxLength {
		return false, ErrPasswordTooLong
	}
	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(d.cost.derive(password, d.salt), d.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	d, err := parseDigest(encoded)
	if err != nil {
		return false, err
	}
	return d.cost.weakerThan(a.cfg.cost()), nil
}

// cost is the argon2id work factor recorded in every digest.
type cost struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

func (c cost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.time, c.memory, c.threads, c.keyLen)
}

// weakerThan treats any key length change as requiring a rehash.
func (c cost) weakerThan(target cost) bool {
	return c.memory < target.memory ||
		c.time < target.time ||
		c.threads < target.threads ||
		c.keyLen != target.keyLen
}
