package password

import (
	"fmt"
	"runtime"
)

// Argon2idParams is the Argon2id cost. MemoryKiB is in KiB, as argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds the secrets Hash accepts.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the hasher. The zero value is not usable; start from DefaultConfig.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the hashing baseline for account credentials.
// The policy only bounds length; deployments tighten it via env.
func DefaultConfig() Config {
	lanes := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(lanes), // #nosec G115 -- in [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{MinLength: 1, MaxLength: 256},
	}
}

type bound struct {
	name     string
	val      uint64
	min, max uint64
}

// Check rejects parameters outside the ranges Warden supports.
func (c Config) Check() error {
	p := c.Params
	for _, b := range []bound{
		{"min_len", uint64(max(c.Policy.MinLength, 0)), 1, 1024},
		{"max_len", uint64(max(c.Policy.MaxLength, 0)), 1, 4096},
		{"argon2 memory_kib", uint64(p.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"argon2 iterations", uint64(p.Iterations), 1, 20},
		{"argon2 parallelism", uint64(p.Parallelism), 1, 64},
		{"argon2 salt_len", uint64(p.SaltLength), 8, 64},
		{"argon2 key_len", uint64(p.KeyLength), 16, 64},
	} {
		if b.val < b.min || b.val > b.max {
			return fmt.Errorf("password: %s=%d out of range [%d..%d]", b.name, b.val, b.min, b.max)
		}
	}
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf("password: min_len(%d) > max_len(%d)", c.Policy.MinLength, c.Policy.MaxLength)
	}
	return nil
}
