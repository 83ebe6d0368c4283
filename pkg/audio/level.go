package audio

import "math"

// RMS returns the root-mean-square level of the samples, normalized to the
// 0..1 range (1.0 corresponds to a full-scale square wave).
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(pcm))) / 32768.0
}

// Peak returns the largest absolute sample value, normalized to 0..1.
func Peak(pcm []int16) float64 {
	var peak int32
	for _, s := range pcm {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return float64(peak) / 32768.0
}
