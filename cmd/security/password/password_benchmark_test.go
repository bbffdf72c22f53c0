package password

import "testing"

const benchPassword = "correct horse battery staple"

func BenchmarkHash(b *testing.B) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{"default", DefaultConfig()},
		{"fast", fastConfig()},
	} {
		b.Run(tc.name, func(b *testing.B) {
			for b.Loop() {
				if _, err := tc.cfg.Hash(benchPassword); err != nil {
					b.Fatalf("Hash: %v", err)
				}
			}
		})
	}
}

func BenchmarkVerify(b *testing.B) {
	cfg := DefaultConfig()
	digest, err := cfg.Hash(benchPassword)
	if err != nil {
		b.Fatalf("Hash: %v", err)
	}

	for b.Loop() {
		if ok, err := cfg.Verify(digest, benchPassword); err != nil || !ok {
			b.Fatalf("Verify: ok=%v err=%v", ok, err)
		}
	}
}
