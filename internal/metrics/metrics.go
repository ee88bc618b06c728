// Package metrics implements the reconstruction quality measures used to
// evaluate recovered spectral cubes against ground truth.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

// MSE is the mean squared error between two equally shaped tensors.
func MSE(a, b tensor.Tensor) float64 {
	if !a.SameShape(b) {
		panic("metrics: shape mismatch")
	}
	d := toFloat64(a.Data)
	floats.Sub(d, toFloat64(b.Data))
	return floats.Dot(d, d) / float64(len(d))
}

// RMSE is the root mean squared error.
func RMSE(a, b tensor.Tensor) float64 {
	return math.Sqrt(MSE(a, b))
}

// PSNR is the peak signal-to-noise ratio in decibels for the given
// signal peak. Identical inputs return +Inf.
func PSNR(a, b tensor.Tensor, peak float64) float64 {
	mse := MSE(a, b)
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(peak*peak/mse)
}

// SAM is the spectral angle mapper: the mean angle in radians between
// the per-pixel spectral vectors of a and b. Pixels where either
// spectrum is all zero are skipped; if no pixel has signal the result
// is zero.
func SAM(a, b tensor.Tensor) float64 {
	if !a.SameShape(b) {
		panic("metrics: shape mismatch")
	}
	hw := a.H * a.W
	av := make([]float64, a.C)
	bv := make([]float64, a.C)
	var angles []float64
	for n := 0; n < a.N; n++ {
		for i := 0; i < hw; i++ {
			for c := 0; c < a.C; c++ {
				av[c] = float64(a.Plane(n, c)[i])
				bv[c] = float64(b.Plane(n, c)[i])
			}
			na := floats.Norm(av, 2)
			nb := floats.Norm(bv, 2)
			if na == 0 || nb == 0 {
				continue
			}
			cos := floats.Dot(av, bv) / (na * nb)
			if cos > 1 {
				cos = 1
			} else if cos < -1 {
				cos = -1
			}
			angles = append(angles, math.Acos(cos))
		}
	}
	if len(angles) == 0 {
		return 0
	}
	return stat.Mean(angles, nil)
}
