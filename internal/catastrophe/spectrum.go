package catastrophe

import (
	"math"
	"math/cmplx"
)

// fft is a radix-2 Cooley-Tukey transform. Callers pad to a power of two.
func fft(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		result := make([]complex128, n)
		for i := range data {
			result[i] = complex(data[i], 0)
		}
		return result
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}

	feven := fft(even)
	fodd := fft(odd)

	result := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		result[k] = feven[k] + w*fodd[k]
		result[k+n/2] = feven[k] - w*fodd[k]
	}
	return result
}

// powerSpectrum returns the magnitude spectrum of the mean-removed series,
// zero-padded to the next power of two.
func powerSpectrum(series []float64) []float64 {
	mean := 0.0
	for _, v := range series {
		mean += v / float64(len(series))
	}

	n := 1
	for n < len(series) {
		n *= 2
	}
	padded := make([]float64, n)
	for i, v := range series {
		padded[i] = v - mean
	}

	transformed := fft(padded)
	ps := make([]float64, len(transformed)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(transformed[i])
	}
	return ps
}

// oscillatory reports whether the series has a dominant spectral peak well
// above the spectrum's mean power.
func oscillatory(series []float64) bool {
	if len(series) < 11 {
		return false
	}
	ps := powerSpectrum(series)
	if len(ps) < 3 {
		return false
	}

	mean, peak := 0.0, 0.0
	for _, p := range ps[1:] {
		mean += p / float64(len(ps)-1)
		if p > peak {
			peak = p
		}
	}
	return peak > 10*mean
}
