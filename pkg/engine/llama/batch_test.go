package llama

import "testing"

func TestAdaptiveBatchSize(t *testing.T) {
	cases := map[int]int{
		1024:  2048,
		2048:  2048,
		4096:  4096,
		8192:  8192,
		16384: 8192,
	}
	for ctx, want := range cases {
		if got := AdaptiveBatchSize(ctx); got != want {
			t.Errorf("AdaptiveBatchSize(%d) = %d, want %d", ctx, got, want)
		}
	}
}
