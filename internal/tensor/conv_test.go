package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestConv2dHandComputed(t *testing.T) {
	x := FromData(1, 1, 3, 3, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	w := FromData(1, 1, 2, 2, []float32{1, 1, 1, 1})

	out := Conv2d(x, w, nil, 1, 0, 1)
	want := []float32{12, 16, 24, 28}
	compareSlices(t, out.Data, want, 0)
	if out.H != 2 || out.W != 2 {
		t.Fatalf("unexpected output shape %v", out.Shape())
	}
}

func TestConv2dDepthwise(t *testing.T) {
	x := FromData(1, 2, 2, 2, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	w := FromData(2, 1, 1, 1, []float32{2, 3})
	b := []float32{1, -1}

	out := Conv2d(x, w, b, 1, 0, 2)
	want := []float32{3, 5, 7, 9, 14, 17, 20, 23}
	compareSlices(t, out.Data, want, 0)
}

func TestConv2dMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := New(2, 4, 9, 11)
	for i := range x.Data {
		x.Data[i] = rng.Float32() - 0.5
	}
	w := New(6, 4, 3, 3)
	for i := range w.Data {
		w.Data[i] = rng.Float32() - 0.5
	}
	bias := make([]float32, 6)
	for i := range bias {
		bias[i] = rng.Float32()
	}

	got := Conv2d(x, w, bias, 2, 1, 1)
	want := refConv2d(x, w, bias, 2, 1)
	if !got.SameShape(want) {
		t.Fatalf("shape mismatch: got %v want %v", got.Shape(), want.Shape())
	}
	compareSlices(t, got.Data, want.Data, 1e-5)
}

// refConv2d is an independent formulation: explicit output indexing into a
// zero-padded copy of the input.
func refConv2d(x, w Tensor, bias []float32, stride, pad int) Tensor {
	padded := New(x.N, x.C, x.H+2*pad, x.W+2*pad)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			for h := 0; h < x.H; h++ {
				copy(padded.Row(n, c, h+pad)[pad:pad+x.W], x.Row(n, c, h))
			}
		}
	}
	outH := (padded.H-w.H)/stride + 1
	outW := (padded.W-w.W)/stride + 1
	out := New(x.N, w.N, outH, outW)
	for n := 0; n < x.N; n++ {
		for oc := 0; oc < w.N; oc++ {
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					sum := bias[oc]
					for ic := 0; ic < x.C; ic++ {
						for kh := 0; kh < w.H; kh++ {
							for kw := 0; kw < w.W; kw++ {
								sum += padded.At(n, ic, oh*stride+kh, ow*stride+kw) * w.At(oc, ic, kh, kw)
							}
						}
					}
					out.Set(n, oc, oh, ow, sum)
				}
			}
		}
	}
	return out
}

func TestConvTranspose2dHandComputed(t *testing.T) {
	x := FromData(1, 1, 2, 2, []float32{1, 2, 3, 4})
	w := FromData(1, 1, 2, 2, []float32{1, 10, 100, 1000})

	out := ConvTranspose2d(x, w, nil, 2)
	want := []float32{
		1, 10, 2, 20,
		100, 1000, 200, 2000,
		3, 30, 4, 40,
		300, 3000, 400, 4000,
	}
	compareSlices(t, out.Data, want, 0)
}

func TestConvTranspose2dChannelMix(t *testing.T) {
	// Two input channels mapping onto one output channel: the
	// contributions must accumulate.
	x := FromData(1, 2, 1, 1, []float32{2, 3})
	w := FromData(2, 1, 1, 1, []float32{5, 7})
	b := []float32{1}

	out := ConvTranspose2d(x, w, b, 1)
	compareSlices(t, out.Data, []float32{2*5 + 3*7 + 1}, 0)
}

func TestPadReflect(t *testing.T) {
	x := FromData(1, 1, 3, 3, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	out := PadReflect(x, 2, 1)
	want := []float32{
		1, 2, 3, 2,
		4, 5, 6, 5,
		7, 8, 9, 8,
		4, 5, 6, 5,
		1, 2, 3, 2,
	}
	compareSlices(t, out.Data, want, 0)
}

func TestPadZeroAndCrop(t *testing.T) {
	x := FromData(1, 1, 2, 2, []float32{1, 2, 3, 4})
	padded := PadZero(x, 1, 2)
	if padded.H != 3 || padded.W != 4 {
		t.Fatalf("unexpected padded shape %v", padded.Shape())
	}
	want := []float32{
		1, 2, 0, 0,
		3, 4, 0, 0,
		0, 0, 0, 0,
	}
	compareSlices(t, padded.Data, want, 0)

	back := CropHW(padded, 2, 2)
	compareSlices(t, back.Data, x.Data, 0)
}

func TestGELUValues(t *testing.T) {
	cases := []struct{ in, want float32 }{
		{0, 0},
		{1, 0.8413447},
		{-1, -0.15865526},
		{3, 2.9959502},
	}
	for _, c := range cases {
		got := GELU(c.in)
		if diff := math.Abs(float64(got - c.want)); diff > 1e-5 {
			t.Fatalf("GELU(%v): got %v want %v", c.in, got, c.want)
		}
	}
}

func TestSoftplusPositivity(t *testing.T) {
	for _, v := range []float32{-50, -1, 0, 1, 25, 80} {
		got := Softplus(v)
		if got < 0 {
			t.Fatalf("Softplus(%v) = %v, want >= 0", v, got)
		}
		if v > 20 && got != v {
			t.Fatalf("Softplus(%v) = %v, want identity in the linear regime", v, got)
		}
	}
	if diff := math.Abs(float64(Softplus(0)) - math.Ln2); diff > 1e-6 {
		t.Fatalf("Softplus(0) = %v, want ln 2", Softplus(0))
	}
}

func TestSoftmaxNormalises(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	Softmax(x)
	var sum float32
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			t.Fatalf("softmax not monotone for monotone input: %v", x)
		}
	}
	for _, v := range x {
		sum += v
	}
	if diff := math.Abs(float64(sum) - 1); diff > 1e-6 {
		t.Fatalf("softmax sum = %v, want 1", sum)
	}
}

func TestLinear(t *testing.T) {
	w := []float32{
		1, 2,
		3, 4,
		5, 6,
	}
	x := []float32{10, 20}
	dst := make([]float32, 3)
	Linear(dst, w, x, []float32{1, 1, 1})
	compareSlices(t, dst, []float32{51, 111, 171}, 0)
}

func compareSlices(t *testing.T, got, want []float32, tol float32) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(want))
	}
	for i := range got {
		g := got[i]
		w := want[i]
		if g < w-tol || g > w+tol {
			t.Fatalf("mismatch at %d: got %v want %v±%v", i, g, w, tol)
		}
	}
}
