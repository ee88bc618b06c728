package model

import (
	"strconv"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

func childName(base string, i int) string {
	return base + "." + strconv.Itoa(i)
}

// block is one transformer sub-block: pre-norm attention with a residual
// connection, then a pre-norm feed-forward with a residual. When the
// attention term is disabled the first branch collapses to the identity.
type block struct {
	attnNorm *layerNorm
	attn     *sglb
	ffnNorm  *layerNorm
	ffn      ffn
}

func newBlock(ps *ParamSet, name string, dim, heads int, cfg *Config) *block {
	b := &block{
		ffnNorm: newLayerNorm(ps, name+".ffn_norm", dim, cfg.Norm),
		ffn:     newFFN(ps, name+".ffn", dim, cfg),
	}
	if cfg.NonLocal {
		b.attnNorm = newLayerNorm(ps, name+".attn_norm", dim, cfg.Norm)
		b.attn = newSGLB(ps, name+".attn", dim, heads, cfg.GlobalTokens, cfg.WindowSize)
	}
	return b
}

func (b *block) forward(x tensor.Tensor) tensor.Tensor {
	if b.attn != nil {
		a := b.attn.forward(b.attnNorm.forward(x))
		tensor.AddAssign(a, x)
		x = a
	}
	f := b.ffn.forward(b.ffnNorm.forward(x))
	tensor.AddAssign(f, x)
	return f
}

// level is a stack of blocks at one resolution.
type level struct {
	blocks []*block
}

func newLevel(ps *ParamSet, name string, dim, heads, depth int, cfg *Config) *level {
	l := &level{blocks: make([]*block, depth)}
	for i := range l.blocks {
		l.blocks[i] = newBlock(ps, childName(name, i), dim, heads, cfg)
	}
	return l
}

func (l *level) forward(x tensor.Tensor) tensor.Tensor {
	for _, b := range l.blocks {
		x = b.forward(x)
	}
	return x
}
