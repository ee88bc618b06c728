package model

import (
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// conv2d wraps a learned convolution's parameters together with its
// geometry.
type conv2d struct {
	w                   tensor.Tensor
	b                   []float32
	stride, pad, groups int
}

func newConv2d(ps *ParamSet, name string, inC, outC, kernel, stride, pad, groups int, bias bool) *conv2d {
	w := ps.add(name+".weight", kindWeight, outC, inC/groups, kernel, kernel)
	c := &conv2d{
		w:      tensor.FromData(outC, inC/groups, kernel, kernel, w),
		stride: stride,
		pad:    pad,
		groups: groups,
	}
	if bias {
		c.b = ps.add(name+".bias", kindBias, outC)
	}
	return c
}

func (c *conv2d) forward(x tensor.Tensor) tensor.Tensor {
	return tensor.Conv2d(x, c.w, c.b, c.stride, c.pad, c.groups)
}

// convTranspose2d wraps a learned transposed convolution.
type convTranspose2d struct {
	w      tensor.Tensor
	b      []float32
	stride int
}

func newConvTranspose2d(ps *ParamSet, name string, inC, outC, kernel, stride int, bias bool) *convTranspose2d {
	w := ps.add(name+".weight", kindWeight, inC, outC, kernel, kernel)
	c := &convTranspose2d{
		w:      tensor.FromData(inC, outC, kernel, kernel, w),
		stride: stride,
	}
	if bias {
		c.b = ps.add(name+".bias", kindBias, outC)
	}
	return c
}

func (c *convTranspose2d) forward(x tensor.Tensor) tensor.Tensor {
	return tensor.ConvTranspose2d(x, c.w, c.b, c.stride)
}

// linear wraps a learned dense projection applied per token.
type linear struct {
	w       []float32
	b       []float32
	in, out int
}

func newLinear(ps *ParamSet, name string, in, out int, bias bool) *linear {
	l := &linear{
		w:   ps.add(name+".weight", kindWeight, out, in),
		in:  in,
		out: out,
	}
	if bias {
		l.b = ps.add(name+".bias", kindBias, out)
	}
	return l
}

// forward computes dst = W*x (+ b) for one token. dst must have length
// l.out and x length l.in.
func (l *linear) forward(dst, x []float32) {
	tensor.Linear(dst, l.w, x, l.b)
}
