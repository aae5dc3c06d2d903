package audio

import "math"

// TargetRMSdB is the loudness NormalizeRMS aims for.
const TargetRMSdB = -20.0

const fullScale = 32768.0

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(math.Round(v))
}

// RMS returns the root mean square of samples normalised to [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / fullScale
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample normalised to [0, 1].
func Peak(samples []int16) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s)) / fullScale
		if v > peak {
			peak = v
		}
	}
	return peak
}

// DB converts a linear amplitude to dBFS. Zero maps to -Inf.
func DB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}

// ApplyGain scales samples by gainDB, clipping to the 16-bit range.
func ApplyGain(samples []int16, gainDB float64) []int16 {
	out := make([]int16, len(samples))
	if gainDB == 0 {
		copy(out, samples)
		return out
	}
	g := math.Pow(10, gainDB/20)
	for i, s := range samples {
		out[i] = clip16(float64(s) * g)
	}
	return out
}

// NormalizeRMS scales samples so their RMS level is TargetRMSdB. Silent
// input is returned unchanged.
func NormalizeRMS(samples []int16) []int16 {
	rms := RMS(samples)
	if rms == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}
	return ApplyGain(samples, TargetRMSdB-DB(rms))
}

// Resample converts samples from one rate to another by linear
// interpolation. The output holds round(n*to/from) samples.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}
	n := int(math.Round(float64(len(samples)) * float64(to) / float64(from)))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(j)
		out[i] = clip16(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}
