package model

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

func TestRelativePositionIndex(t *testing.T) {
	t.Parallel()
	for _, ws := range []int{1, 2, 4, 8} {
		area := ws * ws
		table := (2*ws - 1) * (2*ws - 1)
		idx := relativePositionIndex(ws)
		if len(idx) != area*area {
			t.Fatalf("ws=%d: expected %d entries, got %d", ws, area*area, len(idx))
		}
		center := (ws-1)*(2*ws-1) + ws - 1
		for i := 0; i < area; i++ {
			for j := 0; j < area; j++ {
				v := idx[i*area+j]
				if v < 0 || v >= table {
					t.Fatalf("ws=%d: index %d out of table range %d", ws, v, table)
				}
				if i == j && v != center {
					t.Fatalf("ws=%d: diagonal entry %d, expected %d", ws, v, center)
				}
			}
		}
		// Offset (i, j) and its mirror (j, i) must land on rows that are
		// reflections through the table center.
		for i := 0; i < area; i++ {
			for j := 0; j < area; j++ {
				if idx[i*area+j]+idx[j*area+i] != 2*center {
					t.Fatalf("ws=%d: indices for (%d,%d) and (%d,%d) are not mirrored", ws, i, j, j, i)
				}
			}
		}
	}
}

// With every spatial position carrying the same feature vector, any
// attention weighting averages identical values, so the output must be
// spatially uniform no matter what the weights are.
func TestAttentionUniformInput(t *testing.T) {
	t.Parallel()
	ps := newParamSet()
	s := newSGLB(ps, "attn", 8, 2, 1, 4)
	ps.initRandom(7)

	x := tensor.New(1, 8, 8, 8)
	for c := 0; c < 8; c++ {
		p := x.Plane(0, c)
		for i := range p {
			p[i] = float32(c)*0.25 - 1
		}
	}
	out := s.forward(x)
	for c := 0; c < 8; c++ {
		p := out.Plane(0, c)
		ref := p[0]
		if math.IsNaN(float64(ref)) || math.IsInf(float64(ref), 0) {
			t.Fatalf("channel %d: non-finite output %f", c, ref)
		}
		for i, v := range p {
			if diff := float64(v - ref); math.Abs(diff) > 1e-5 {
				t.Fatalf("channel %d position %d: %f differs from %f", c, i, v, ref)
			}
		}
	}
}

// The window size need not divide the spatial extent; outputs must stay
// finite and the shape unchanged.
func TestAttentionUnalignedExtent(t *testing.T) {
	t.Parallel()
	ps := newParamSet()
	s := newSGLB(ps, "attn", 4, 1, 2, 4)
	ps.initRandom(3)

	x := tensor.New(2, 4, 5, 7)
	for i := range x.Data {
		x.Data[i] = float32(i%13)*0.1 - 0.6
	}
	out := s.forward(x)
	if !out.SameShape(x) {
		t.Fatalf("expected shape %v, got %v", x.Shape(), out.Shape())
	}
	for i, v := range out.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("non-finite output at %d: %f", i, v)
		}
	}
}

func TestAttentionDeterministic(t *testing.T) {
	t.Parallel()
	ps := newParamSet()
	s := newSGLB(ps, "attn", 4, 2, 1, 4)
	ps.initRandom(11)

	x := tensor.New(1, 4, 12, 12)
	for i := range x.Data {
		x.Data[i] = float32(i%29)*0.07 - 1
	}
	a := s.forward(x)
	b := s.forward(x)
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("output differs between runs at %d: %f vs %f", i, a.Data[i], b.Data[i])
		}
	}
}

// When one window covers the whole extent, the local pass is plain dense
// attention. With the global key/value projection zeroed and an identity
// output projection, the block's spatial output must match a naive
// full-attention reference computed from the same weights.
func TestAttentionFullWindowMatchesNaive(t *testing.T) {
	t.Parallel()
	const (
		dim    = 8
		heads  = 2
		window = 8
		hw     = window * window
	)
	ps := newParamSet()
	s := newSGLB(ps, "attn", dim, heads, 1, window)
	ps.initRandom(5)
	if err := ps.Set("attn.kv_global.weight", make([]float32, 2*dim*dim)); err != nil {
		t.Fatal(err)
	}
	eye := make([]float32, dim*dim)
	for i := 0; i < dim; i++ {
		eye[i*dim+i] = 1
	}
	if err := ps.Set("attn.proj.weight", eye); err != nil {
		t.Fatal(err)
	}

	x := tensor.New(1, dim, window, window)
	for i := range x.Data {
		x.Data[i] = float32(i%17)*0.05 - 0.4
	}
	got := s.forward(x)

	wQKV, _, _ := ps.Get("attn.qkv.weight")
	bias, _, _ := ps.Get("attn.bias_table")
	idx := relativePositionIndex(window)
	headDim := dim / heads
	scale := float32(1 / math.Sqrt(float64(headDim)))

	q := make([][]float32, hw)
	k := make([][]float32, hw)
	v := make([][]float32, hw)
	for i := 0; i < hw; i++ {
		tok := make([]float32, dim)
		for ch := 0; ch < dim; ch++ {
			tok[ch] = x.Plane(0, ch)[i]
		}
		full := make([]float32, 3*dim)
		for o := 0; o < 3*dim; o++ {
			var acc float32
			for in := 0; in < dim; in++ {
				acc += wQKV[o*dim+in] * tok[in]
			}
			full[o] = acc
		}
		q[i], k[i], v[i] = full[:dim], full[dim:2*dim], full[2*dim:]
	}
	for i := 0; i < hw; i++ {
		want := make([]float32, dim)
		for head := 0; head < heads; head++ {
			off := head * headDim
			scores := make([]float32, hw)
			for j := 0; j < hw; j++ {
				scores[j] = tensor.Dot(q[i][off:off+headDim], k[j][off:off+headDim])*scale +
					bias[idx[i*hw+j]*heads+head]
			}
			tensor.Softmax(scores)
			for j := 0; j < hw; j++ {
				for d := 0; d < headDim; d++ {
					want[off+d] += scores[j] * v[j][off+d]
				}
			}
		}
		for ch := 0; ch < dim; ch++ {
			g := got.Plane(0, ch)[i]
			if diff := math.Abs(float64(g - want[ch])); diff > 1e-4 {
				t.Fatalf("position %d channel %d: got %f, want %f", i, ch, g, want[ch])
			}
		}
	}
}

func TestWindowPoolForEach(t *testing.T) {
	t.Parallel()
	var sum int64
	getWindowPool().forEach(100, func(i int) {
		atomic.AddInt64(&sum, int64(i))
	})
	if sum != 4950 {
		t.Fatalf("expected index sum 4950, got %d", sum)
	}
	getWindowPool().forEach(0, func(int) { t.Fatal("callback for empty range") })
}

func BenchmarkSGLBForward(b *testing.B) {
	ps := newParamSet()
	s := newSGLB(ps, "attn", 28, 4, 1, 8)
	ps.initRandom(1)

	x := tensor.New(1, 28, 64, 64)
	for i := range x.Data {
		x.Data[i] = float32(i%31) * 0.03
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.forward(x)
	}
}
