package password

import "testing"

// Login cost is dominated by one Verify; keep it observable as parameters change.
func BenchmarkVerify(b *testing.B) {
	for _, tc := range []struct {
		name string
		cfg  Config
	}{
		{"default", DefaultConfig()},
		{"test_params", func() Config {
			c := DefaultConfig()
			c.Params.MemoryKiB, c.Params.Iterations, c.Params.Parallelism = 8*1024, 1, 1
			return c
		}()},
	} {
		b.Run(tc.name, func(b *testing.B) {
			h, err := tc.cfg.Hash("correct horse battery staple")
			if err != nil {
				b.Fatalf("Hash: %v", err)
			}
			for b.Loop() {
				if ok, err := tc.cfg.Verify(h, "correct horse battery staple"); err != nil || !ok {
					b.Fatalf("Verify: ok=%v err=%v", ok, err)
				}
			}
		})
	}
}

func BenchmarkHash(b *testing.B) {
	cfg := DefaultConfig()
	for b.Loop() {
		if _, err := cfg.Hash("correct horse battery staple"); err != nil {
			b.Fatalf("Hash: %v", err)
		}
	}
}
