package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// ByteFrequencyData returns a magnitude spectrum of the first bins frequency
// bins scaled to 0-255 over the -100..-30 dB range, the same scale a browser
// analyser node reports. Samples are Blackman-windowed before the FFT.
func ByteFrequencyData(samples []int16, bins int) []byte {
	out := make([]byte, max(bins, 0))
	n := len(samples)
	if n == 0 || bins <= 0 {
		return out
	}

	seq := make([]float64, n)
	for i, s := range samples {
		seq[i] = float64(s) / 32768.0
	}
	if n > 1 {
		window.Blackman(seq)
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, seq)
	for k := 0; k < bins && k < len(coeffs); k++ {
		magnitude := cmplx.Abs(coeffs[k]) / float64(n)
		db := minDecibels
		if magnitude > 0 {
			db = 20 * math.Log10(magnitude)
		}

		scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255
		out[k] = byte(math.Max(0, math.Min(255, scaled)))
	}

	return out
}

// AverageMagnitude returns the mean of a byte spectrum.
func AverageMagnitude(spectrum []byte) float64 {
	if len(spectrum) == 0 {
		return 0
	}

	var sum int
	for _, v := range spectrum {
		sum += int(v)
	}
	return float64(sum) / float64(len(spectrum))
}
