package llama

// AdaptiveBatchSize computes n_batch from the requested context length:
// clamp(max(ctxLen, 2048), 2048, 8192). Small contexts use the 2048 floor;
// large prompts need more headroom to avoid native batch-size asserts; the
// 8192 ceiling caps memory.
func AdaptiveBatchSize(ctxLen int) int {
	n := ctxLen
	if n < 2048 {
		n = 2048
	}
	if n > 8192 {
		n = 8192
	}
	return n
}
