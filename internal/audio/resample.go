package audio

// Resample converts mono samples between sample rates using linear
// interpolation. The input is returned unchanged when the rates match.
func Resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return in
	}
	if len(in) == 0 {
		return nil
	}

	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		outLen = 1
	}
	out := make([]float32, outLen)

	step := float64(fromRate) / float64(toRate)
	last := len(in) - 1
	for i := range out {
		srcPos := float64(i) * step
		srcIdx := int(srcPos)
		if srcIdx >= last {
			out[i] = in[last]
			continue
		}
		frac := float32(srcPos - float64(srcIdx))
		s0 := in[srcIdx]
		s1 := in[srcIdx+1]
		out[i] = s0 + frac*(s1-s0)
	}
	return out
}
