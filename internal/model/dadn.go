package model

import (
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

const pwdwpwHidden = 64

// pwdwpw is the pointwise / depthwise / pointwise convolution block used
// inside the degradation-aware network.
type pwdwpw struct {
	pw1, dw, pw2 *conv2d
}

func newPWDWPW(ps *ParamSet, name string, inC, outC int) *pwdwpw {
	return &pwdwpw{
		pw1: newConv2d(ps, name+".pw1", inC, pwdwpwHidden, 1, 1, 0, 1, true),
		dw:  newConv2d(ps, name+".dwconv", pwdwpwHidden, pwdwpwHidden, 3, 1, 1, pwdwpwHidden, true),
		pw2: newConv2d(ps, name+".pw2", pwdwpwHidden, outC, 1, 1, 0, 1, false),
	}
}

func (b *pwdwpw) forward(x tensor.Tensor) tensor.Tensor {
	t := b.pw1.forward(x)
	tensor.ApplyGELU(t.Data)
	t = b.dw.forward(t)
	tensor.ApplyGELU(t.Data)
	return b.pw2.forward(t)
}

// dadn is the degradation-aware network. From the current estimate and
// the sensing mask it produces a refined mask, a per-image step size mu
// and a per-image noise level, both strictly positive through a softplus.
type dadn struct {
	dl0, dl1 *pwdwpw
	down     *conv2d
	mlp0     *conv2d
	mlp1     *conv2d
	mlp2     *conv2d
}

func newDADN(ps *ParamSet, name string, cfg *Config) *dadn {
	c := cfg.Bands
	return &dadn{
		dl0:  newPWDWPW(ps, name+".dl0", 2*c, 2*c),
		dl1:  newPWDWPW(ps, name+".dl1", 2*c, c),
		down: newConv2d(ps, name+".down", c, 2*c, 3, 2, 1, 1, true),
		mlp0: newConv2d(ps, name+".mlp0", 2*c, 2*c, 1, 1, 0, 1, true),
		mlp1: newConv2d(ps, name+".mlp1", 2*c, 2*c, 1, 1, 0, 1, true),
		mlp2: newConv2d(ps, name+".mlp2", 2*c, 2, 1, 1, 0, 1, true),
	}
}

// forward returns the refined mask plus per-batch step sizes and noise
// levels. phi and z must share their shape.
func (d *dadn) forward(z, phi tensor.Tensor) (tensor.Tensor, []float32, []float32) {
	x := tensor.ConcatChannels(phi, z)
	phiR := d.dl1.forward(d.dl0.forward(x))

	phiNew := tensor.Sum(phi, phiR)

	feat := phiR.Clone()
	tensor.ApplyReLU(feat.Data)
	feat = d.down.forward(feat)
	pooled := tensor.GlobalAvgPool(feat)

	pooled = d.mlp0.forward(pooled)
	tensor.ApplyReLU(pooled.Data)
	pooled = d.mlp1.forward(pooled)
	tensor.ApplyReLU(pooled.Data)
	params := d.mlp2.forward(pooled)

	mu := make([]float32, z.N)
	noise := make([]float32, z.N)
	for n := 0; n < z.N; n++ {
		mu[n] = tensor.Softplus(params.At(n, 0, 0, 0)) + 1e-6
		noise[n] = tensor.Softplus(params.At(n, 1, 0, 0)) + 1e-6
	}
	return phiNew, mu, noise
}
