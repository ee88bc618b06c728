package model

import (
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// lnlt is the hierarchical local/non-local transformer denoising prior: a
// two-level U-Net of transformer blocks with strided-convolution
// downsampling, transposed-convolution upsampling and 1x1 skip fusion.
// The network is residual; it predicts a correction on top of its input.
type lnlt struct {
	cfg *Config

	embedding *conv2d

	enc0  *level
	down0 *conv2d
	enc1  *level
	down1 *conv2d

	bottleneck *level

	up0     *convTranspose2d
	fusion0 *conv2d
	dec1    *level
	up1     *convTranspose2d
	fusion1 *conv2d
	dec0    *level

	mapping *conv2d
}

func newLNLT(ps *ParamSet, name string, cfg *Config) *lnlt {
	dim := cfg.Dim
	return &lnlt{
		cfg:       cfg,
		embedding: newConv2d(ps, name+".embedding", cfg.priorInDim(), dim, 3, 1, 1, 1, false),

		enc0:  newLevel(ps, name+".enc0", dim, 1, cfg.NumBlocks[0], cfg),
		down0: newConv2d(ps, name+".down0", dim, dim*2, 4, 2, 1, 1, false),
		enc1:  newLevel(ps, name+".enc1", dim*2, 2, cfg.NumBlocks[1], cfg),
		down1: newConv2d(ps, name+".down1", dim*2, dim*4, 4, 2, 1, 1, false),

		bottleneck: newLevel(ps, name+".bottleneck", dim*4, 4, cfg.NumBlocks[2], cfg),

		up0:     newConvTranspose2d(ps, name+".up0", dim*4, dim*2, 2, 2, true),
		fusion0: newConv2d(ps, name+".fusion0", dim*4, dim*2, 1, 1, 0, 1, false),
		dec1:    newLevel(ps, name+".dec1", dim*2, 2, cfg.NumBlocks[3], cfg),
		up1:     newConvTranspose2d(ps, name+".up1", dim*2, dim, 2, 2, true),
		fusion1: newConv2d(ps, name+".fusion1", dim*2, dim, 1, 1, 0, 1, false),
		dec0:    newLevel(ps, name+".dec0", dim, 1, cfg.NumBlocks[4], cfg),

		mapping: newConv2d(ps, name+".mapping", dim, cfg.Bands, 3, 1, 1, 1, false),
	}
}

// lnltAlign is the spatial alignment of the prior: inputs are
// reflect-padded up to the next multiple before encoding and cropped
// back afterwards. Reflect padding requires the pad to stay below the
// extent; the controller rejects inputs that cannot satisfy this.
const lnltAlign = 16

// lnltPad returns the reflect pad needed to align one spatial extent.
func lnltPad(extent int) int {
	return (lnltAlign - extent%lnltAlign) % lnltAlign
}

// forward denoises x, which has priorInDim channels (the noise-level map
// first when noise conditioning is enabled). The residual connection
// skips the noise channel so the output always has Bands channels.
func (p *lnlt) forward(x tensor.Tensor) tensor.Tensor {
	h, w := x.H, x.W

	padH := lnltPad(h)
	padW := lnltPad(w)
	xp := x
	if padH > 0 || padW > 0 {
		xp = tensor.PadReflect(x, padH, padW)
	}

	f0 := p.enc0.forward(p.embedding.forward(xp))
	f1 := p.enc1.forward(p.down0.forward(f0))
	fb := p.bottleneck.forward(p.down1.forward(f1))

	d1 := p.fusion0.forward(tensor.ConcatChannels(p.up0.forward(fb), f1))
	d1 = p.dec1.forward(d1)
	d0 := p.fusion1.forward(tensor.ConcatChannels(p.up1.forward(d1), f0))
	d0 = p.dec0.forward(d0)

	out := p.mapping.forward(d0)

	residual := xp
	if xp.C != out.C {
		residual = tensor.SliceChannels(xp, xp.C-out.C, xp.C)
	}
	tensor.AddAssign(out, residual)
	if padH > 0 || padW > 0 {
		out = tensor.CropHW(out, h, w)
	}
	return out
}
