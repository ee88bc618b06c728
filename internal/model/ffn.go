package model

import (
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// ffn is the channel-mixing block of a transformer sub-block. Both
// variants are pure per-pixel mixers on channel-first feature maps.
type ffn interface {
	forward(x tensor.Tensor) tensor.Tensor
}

// feedForward is the plain convolutional MLP:
// 1x1 expand, GELU, depthwise 3x3, GELU, 1x1 contract.
type feedForward struct {
	pw1, dw, pw2 *conv2d
}

func newFeedForward(ps *ParamSet, name string, dim, mult int) *feedForward {
	hidden := dim * mult
	return &feedForward{
		pw1: newConv2d(ps, name+".pw1", dim, hidden, 1, 1, 0, 1, false),
		dw:  newConv2d(ps, name+".dwconv", hidden, hidden, 3, 1, 1, hidden, false),
		pw2: newConv2d(ps, name+".pw2", hidden, dim, 1, 1, 0, 1, false),
	}
}

func (f *feedForward) forward(x tensor.Tensor) tensor.Tensor {
	t := f.pw1.forward(x)
	tensor.ApplyGELU(t.Data)
	t = f.dw.forward(t)
	tensor.ApplyGELU(t.Data)
	return f.pw2.forward(t)
}

// gatedDConvFFN is the gated depthwise-convolution feed-forward network:
// the input is projected to twice the hidden width, depthwise-convolved,
// split in half, and one half gates the other through a GELU before the
// contraction.
type gatedDConvFFN struct {
	projIn, dw, projOut *conv2d
	hidden              int
}

func newGatedDConvFFN(ps *ParamSet, name string, dim int, expand float64) *gatedDConvFFN {
	hidden := int(float64(dim) * expand)
	return &gatedDConvFFN{
		projIn:  newConv2d(ps, name+".proj_in", dim, hidden*2, 1, 1, 0, 1, false),
		dw:      newConv2d(ps, name+".dwconv", hidden*2, hidden*2, 3, 1, 1, hidden*2, true),
		projOut: newConv2d(ps, name+".proj_out", hidden, dim, 1, 1, 0, 1, false),
		hidden:  hidden,
	}
}

func (f *gatedDConvFFN) forward(x tensor.Tensor) tensor.Tensor {
	t := f.dw.forward(f.projIn.forward(x))
	gated := tensor.New(t.N, f.hidden, t.H, t.W)
	for n := 0; n < t.N; n++ {
		for c := 0; c < f.hidden; c++ {
			x1 := t.Plane(n, c)
			x2 := t.Plane(n, f.hidden+c)
			dst := gated.Plane(n, c)
			for i := range dst {
				dst[i] = tensor.GELU(x1[i]) * x2[i]
			}
		}
	}
	return f.projOut.forward(gated)
}

func newFFN(ps *ParamSet, name string, dim int, cfg *Config) ffn {
	if cfg.FFN == FFNPlain {
		return newFeedForward(ps, name, dim, cfg.FFNMult)
	}
	return newGatedDConvFFN(ps, name, dim, cfg.FFNExpand)
}
