package password

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcAlgorithm = "argon2id"

var b64 = base64.RawStdEncoding

// digest is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type digest struct {
	cost cost
	salt []byte
	key  []byte
}

func (d digest) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcAlgorithm, argon2.Version,
		d.cost.memory, d.cost.time, d.cost.threads,
		b64.EncodeToString(d.salt), b64.EncodeToString(d.key))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidHash, fmt.Sprintf(format, args...))
}

func parseDigest(s string) (digest, error) {
	// A leading "$" yields an empty first field.
	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return digest{}, malformed("expected 5 PHC fields")
	}
	alg, ver, params, salt64, key64 := fields[1], fields[2], fields[3], fields[4], fields[5]

	if alg != phcAlgorithm {
		return digest{}, malformed("algorithm %q", alg)
	}
	if v, ok := strings.CutPrefix(ver, "v="); !ok || v != strconv.Itoa(argon2.Version) {
		return digest{}, malformed("version %q", ver)
	}

	c, err := parseCost(params)
	if err != nil {
		return digest{}, err
	}

	var d digest
	if d.salt, err = b64.DecodeString(salt64); err != nil || len(d.salt) < floorSaltBytes {
		return digest{}, malformed("salt")
	}
	if d.key, err = b64.DecodeString(key64); err != nil || len(d.key) < floorKeyBytes {
		return digest{}, malformed("key")
	}
	c.keyLen = uint32(len(d.key))
	d.cost = c
	return d, nil
}

// parseCost reads exactly the m, t and p parameters, each once.
func parseCost(s string) (cost, error) {
	var (
		c    cost
		seen = map[string]bool{}
	)
	for _, kv := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || seen[k] {
			return cost{}, malformed("parameter %q", kv)
		}
		seen[k] = true

		bits := 32
		if k == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return cost{}, malformed("parameter %q", kv)
		}

		switch k {
		case "m":
			if n < floorMemoryKiB {
				return cost{}, malformed("memory %d below floor", n)
			}
			c.memory = uint32(n)
		case "t":
			if n < floorTime {
				return cost{}, malformed("time %d below floor", n)
			}
			c.time = uint32(n)
		case "p":
			if n < floorThreads {
				return cost{}, malformed("parallelism %d below floor", n)
			}
			c.threads = uint8(n)
		default:
			return cost{}, malformed("unknown parameter %q", k)
		}
	}
	if !seen["m"] || !seen["t"] || !seen["p"] {
		return cost{}, malformed("missing cost parameters")
	}
	return c, nil
}
