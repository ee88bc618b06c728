package model

import (
	"math"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

const normEps = 1e-5

// layerNorm normalizes over the channel axis per spatial location.
//
// The bias-free variant scales by 1/sqrt(var) only, leaving the mean in
// place; the with-bias variant subtracts the mean and applies a learned
// affine. Variance is the population variance in both cases.
type layerNorm struct {
	weight   []float32
	bias     []float32
	biasFree bool
}

func newLayerNorm(ps *ParamSet, name string, dim int, variant NormVariant) *layerNorm {
	ln := &layerNorm{
		weight:   ps.add(name+".weight", kindNormWeight, dim),
		biasFree: variant == NormBiasFree,
	}
	if !ln.biasFree {
		ln.bias = ps.add(name+".bias", kindBias, dim)
	}
	return ln
}

func (ln *layerNorm) forward(x tensor.Tensor) tensor.Tensor {
	out := tensor.New(x.N, x.C, x.H, x.W)
	hw := x.H * x.W
	invC := 1.0 / float64(x.C)
	for n := 0; n < x.N; n++ {
		base := n * x.C * hw
		for i := 0; i < hw; i++ {
			var mean float64
			for c := 0; c < x.C; c++ {
				mean += float64(x.Data[base+c*hw+i])
			}
			mean *= invC
			var variance float64
			for c := 0; c < x.C; c++ {
				d := float64(x.Data[base+c*hw+i]) - mean
				variance += d * d
			}
			variance *= invC
			inv := float32(1.0 / math.Sqrt(variance+normEps))
			if ln.biasFree {
				for c := 0; c < x.C; c++ {
					out.Data[base+c*hw+i] = x.Data[base+c*hw+i] * inv * ln.weight[c]
				}
			} else {
				m := float32(mean)
				for c := 0; c < x.C; c++ {
					out.Data[base+c*hw+i] = (x.Data[base+c*hw+i]-m)*inv*ln.weight[c] + ln.bias[c]
				}
			}
		}
	}
	return out
}
