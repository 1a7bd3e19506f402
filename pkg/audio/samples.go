package audio

// PCM16ToFloat32 converts little-endian int16 PCM bytes into float32 samples
// in [-1, 1], the format the acoustic model provider's window-normalization
// step expects (pkg/provider/acoustic.Normalize). A trailing odd byte is
// dropped rather than treated as an error.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(sample) / 32768
	}
	return out
}

// AppendPCM16 decodes src and appends the resulting float32 samples to dst,
// returning the extended slice. Used by streaming callers (internal/ingest)
// to accumulate chunks of an in-progress utterance before handing the whole
// buffer to the acoustic decoder.
func AppendPCM16(dst []float32, src []byte) []float32 {
	return append(dst, PCM16ToFloat32(src)...)
}
