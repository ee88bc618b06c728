package model

import (
	"math"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// attention is windowed local attention with a learned relative-position
// bias plus a global summary-token pathway: the global query aggregates
// over every spatial token, a second projection turns the aggregate into
// a global key/value pair, and every spatial token attends back to it.
type attention struct {
	dim, heads, headDim int
	tokens, window      int
	scale               float32

	qkv      *linear
	kvGlobal *linear
	proj     *linear

	// biasTable is [(2w-1)^2, heads]; relIndex maps every (query, key)
	// pair inside a window to a table row. The index depends only on
	// the window size and is computed once.
	biasTable []float32
	relIndex  []int
}

func newAttention(ps *ParamSet, name string, dim, heads, tokens, window int) *attention {
	if dim%heads != 0 {
		panic("attention: dim not divisible by head count")
	}
	headDim := dim / heads
	return &attention{
		dim:       dim,
		heads:     heads,
		headDim:   headDim,
		tokens:    tokens,
		window:    window,
		scale:     float32(1.0 / math.Sqrt(float64(headDim))),
		qkv:       newLinear(ps, name+".qkv", dim, dim*3, false),
		kvGlobal:  newLinear(ps, name+".kv_global", dim, dim*2, false),
		proj:      newLinear(ps, name+".proj", dim, dim, true),
		biasTable: ps.add(name+".bias_table", kindBiasTable, (2*window-1)*(2*window-1), heads),
		relIndex:  relativePositionIndex(window),
	}
}

// relativePositionIndex precomputes the pairwise relative-offset index
// for a ws×ws window: entry (i, j) is the bias-table row for query i and
// key j.
func relativePositionIndex(ws int) []int {
	area := ws * ws
	idx := make([]int, area*area)
	for i := 0; i < area; i++ {
		yi, xi := i/ws, i%ws
		for j := 0; j < area; j++ {
			yj, xj := j/ws, j%ws
			dy := yi - yj + ws - 1
			dx := xi - xj + ws - 1
			idx[i*area+j] = dy*(2*ws-1) + dx
		}
	}
	return idx
}

// forward runs the attention over one batch element's token sequence.
// x holds tokens+H*W tokens of width dim (global tokens first); the
// result has the same layout.
func (a *attention) forward(x []float32, h, w int) []float32 {
	nc := a.tokens
	c := a.dim
	hd := a.headDim
	hw := h * w
	ws := a.window
	area := ws * ws

	hp := (h + ws - 1) / ws * ws
	wp := (w + ws - 1) / ws * ws
	hpwp := hp * wp

	// Query/key/value projections. Spatial tokens are laid out on the
	// zero-padded hp×wp grid; padded positions project to zero vectors
	// (no qkv bias) exactly as if they were padded before projection.
	qG := make([]float32, nc*c)
	qI := make([]float32, hpwp*c)
	kI := make([]float32, hpwp*c)
	vI := make([]float32, hpwp*c)
	qkvBuf := make([]float32, 3*c)
	for t := 0; t < nc; t++ {
		a.qkv.forward(qkvBuf, x[t*c:(t+1)*c])
		copy(qG[t*c:(t+1)*c], qkvBuf[:c])
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			src := x[(nc+row*w+col)*c:]
			a.qkv.forward(qkvBuf, src[:c])
			ti := row*wp + col
			copy(qI[ti*c:(ti+1)*c], qkvBuf[:c])
			copy(kI[ti*c:(ti+1)*c], qkvBuf[c:2*c])
			copy(vI[ti*c:(ti+1)*c], qkvBuf[2*c:])
		}
	}

	// Local pass: windowed attention with the relative-position bias,
	// fanned out across the worker pool.
	outLocal := make([]float32, hpwp*c)
	nWinW := wp / ws
	numWindows := (hp / ws) * nWinW
	getWindowPool().forEach(numWindows, func(win int) {
		wy := win / nWinW
		wx := win % nWinW
		scores := make([]float32, area)
		for head := 0; head < a.heads; head++ {
			off := head * hd
			for qi := 0; qi < area; qi++ {
				qt := (wy*ws+qi/ws)*wp + wx*ws + qi%ws
				q := qI[qt*c+off : qt*c+off+hd]
				for ki := 0; ki < area; ki++ {
					kt := (wy*ws+ki/ws)*wp + wx*ws + ki%ws
					scores[ki] = tensor.Dot(q, kI[kt*c+off:kt*c+off+hd])*a.scale +
						a.biasTable[a.relIndex[qi*area+ki]*a.heads+head]
				}
				tensor.Softmax(scores)
				dst := outLocal[qt*c+off : qt*c+off+hd]
				for ki := 0; ki < area; ki++ {
					kt := (wy*ws+ki/ws)*wp + wx*ws + ki%ws
					s := scores[ki]
					if s == 0 {
						continue
					}
					v := vI[kt*c+off : kt*c+off+hd]
					for d := 0; d < hd; d++ {
						dst[d] += s * v[d]
					}
				}
			}
		}
	})

	// Crop the padded grid back to h×w for the global passes and the
	// final output.
	qC := make([]float32, hw*c)
	kC := make([]float32, hw*c)
	vC := make([]float32, hw*c)
	outImg := make([]float32, hw*c)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			src := (row*wp + col) * c
			dst := (row*w + col) * c
			copy(qC[dst:dst+c], qI[src:src+c])
			copy(kC[dst:dst+c], kI[src:src+c])
			copy(vC[dst:dst+c], vI[src:src+c])
			copy(outImg[dst:dst+c], outLocal[src:src+c])
		}
	}

	// Global aggregation: each global query attends over all spatial
	// keys, full and unwindowed.
	xCls := make([]float32, nc*c)
	aggScores := make([]float32, hw)
	for t := 0; t < nc; t++ {
		for head := 0; head < a.heads; head++ {
			off := head * hd
			q := qG[t*c+off : t*c+off+hd]
			for i := 0; i < hw; i++ {
				aggScores[i] = tensor.Dot(q, kC[i*c+off:i*c+off+hd]) * a.scale
			}
			tensor.Softmax(aggScores)
			dst := xCls[t*c+off : t*c+off+hd]
			for i := 0; i < hw; i++ {
				s := aggScores[i]
				v := vC[i*c+off : i*c+off+hd]
				for d := 0; d < hd; d++ {
					dst[d] += s * v[d]
				}
			}
		}
	}

	// Project the aggregate into a fresh global key/value pair.
	kG := make([]float32, nc*c)
	vG := make([]float32, nc*c)
	kvBuf := make([]float32, 2*c)
	for t := 0; t < nc; t++ {
		a.kvGlobal.forward(kvBuf, xCls[t*c:(t+1)*c])
		copy(kG[t*c:(t+1)*c], kvBuf[:c])
		copy(vG[t*c:(t+1)*c], kvBuf[c:])
	}

	// Global broadcast: every spatial query attends to the global
	// key/value set; the result adds onto the local-pass output.
	bScores := make([]float32, nc)
	for i := 0; i < hw; i++ {
		for head := 0; head < a.heads; head++ {
			off := head * hd
			q := qC[i*c+off : i*c+off+hd]
			for t := 0; t < nc; t++ {
				bScores[t] = tensor.Dot(q, kG[t*c+off:t*c+off+hd]) * a.scale
			}
			tensor.Softmax(bScores)
			dst := outImg[i*c+off : i*c+off+hd]
			for t := 0; t < nc; t++ {
				s := bScores[t]
				v := vG[t*c+off : t*c+off+hd]
				for d := 0; d < hd; d++ {
					dst[d] += s * v[d]
				}
			}
		}
	}

	// Output projection over the concatenated (global, spatial) tokens.
	out := make([]float32, (nc+hw)*c)
	for t := 0; t < nc; t++ {
		a.proj.forward(out[t*c:(t+1)*c], xCls[t*c:(t+1)*c])
	}
	for i := 0; i < hw; i++ {
		t := nc + i
		a.proj.forward(out[t*c:(t+1)*c], outImg[i*c:(i+1)*c])
	}
	return out
}

// sglb is the spatial-global local block: it owns the learned global
// token(s), flattens a feature map into the token sequence, runs the
// attention and restores the spatial layout.
type sglb struct {
	attn        *attention
	globalToken []float32
	dim, tokens int
}

func newSGLB(ps *ParamSet, name string, dim, heads, tokens, window int) *sglb {
	return &sglb{
		attn:        newAttention(ps, name, dim, heads, tokens, window),
		globalToken: ps.add(name+".global_token", kindToken, tokens, dim),
		dim:         dim,
		tokens:      tokens,
	}
}

func (s *sglb) forward(x tensor.Tensor) tensor.Tensor {
	nc := s.tokens
	c := s.dim
	hw := x.H * x.W
	out := tensor.New(x.N, x.C, x.H, x.W)
	buf := make([]float32, (nc+hw)*c)
	for n := 0; n < x.N; n++ {
		// Global tokens are broadcast-expanded per batch element.
		copy(buf[:nc*c], s.globalToken)
		for ch := 0; ch < c; ch++ {
			plane := x.Plane(n, ch)
			for i := 0; i < hw; i++ {
				buf[(nc+i)*c+ch] = plane[i]
			}
		}
		res := s.attn.forward(buf, x.H, x.W)
		for ch := 0; ch < c; ch++ {
			plane := out.Plane(n, ch)
			for i := 0; i < hw; i++ {
				plane[i] = res[(nc+i)*c+ch]
			}
		}
	}
	return out
}
