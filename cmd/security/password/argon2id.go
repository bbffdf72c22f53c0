package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// PHC string: $argon2id$v=19$m=<KiB>,t=<iterations>,p=<lanes>$<salt>$<key>
const phcVersion = "v=19" // argon2.Version

var b64 = base64.RawStdEncoding

// phc is a decoded Argon2id digest.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$%s$m=%d,t=%d,p=%d$%s$%s",
		phcVersion,
		p.params.MemoryKiB, p.params.Iterations, p.params.Parallelism,
		b64.EncodeToString(p.salt), b64.EncodeToString(p.key),
	)
}

// Hash validates password against the policy and returns its Argon2id PHC digest.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}

	d := phc{params: c.Params, salt: salt}
	d.key = d.derive(password, c.Params.KeyLength)
	return d.String(), nil
}

// Verify reports whether password matches digest. Argon2id and legacy bcrypt
// digests are accepted. A malformed digest, or one whose cost exceeds twice
// the configured parameters, is ErrInvalidHash.
func (c Config) Verify(digest, password string) (bool, error) {
	if isBcrypt(digest) {
		return verifyBcrypt(digest, password)
	}

	d, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	if !d.params.within(c.Params) {
		return false, ErrInvalidHash
	}

	got := d.derive(password, d.params.KeyLength)
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

func (p phc) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), p.salt,
		p.params.Iterations, p.params.MemoryKiB, p.params.Parallelism, keyLen)
}

// within bounds the work an attacker-supplied digest can request.
func (got Argon2idParams) within(limits Argon2idParams) bool {
	switch {
	case got.MemoryKiB > limits.MemoryKiB*2,
		got.Iterations > limits.Iterations*2,
		uint32(got.Parallelism) > uint32(limits.Parallelism)*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(s string) (phc, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" || parts[2] != phcVersion {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, lanes uint32
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch k {
		case "m":
			mem = uint32(n)
		case "t":
			iter = uint32(n)
		case "p":
			lanes = uint32(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if mem == 0 || iter == 0 || lanes == 0 || lanes > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(lanes),     // #nosec G115 -- checked <= 255 above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by the digest length.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by the digest length.
		},
		salt: salt,
		key:  key,
	}, nil
}
