package randx

import "testing"

func TestSeededSourcesAgree(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 20; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("draw %d diverged", i)
		}
	}
	if got := a.IntN(0); got != 0 {
		t.Fatalf("IntN(0)=%d", got)
	}
}
