package sci

import (
	"math/rand"
	"testing"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

func randTensor(rng *rand.Rand, n, c, h, w int) tensor.Tensor {
	t := tensor.New(n, c, h, w)
	for i := range t.Data {
		t.Data[i] = rng.Float32()*2 - 1
	}
	return t
}

func TestShiftUnshiftRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct{ bands, h, w, step int }{
		{1, 4, 4, 2},
		{3, 5, 7, 0},
		{3, 5, 7, 1},
		{8, 6, 10, 2},
		{28, 3, 12, 2},
		{4, 2, 3, 5},
	}
	for _, c := range cases {
		x := randTensor(rng, 2, c.bands, c.h, c.w)
		back := Unshift(Shift(x, c.step), c.step)
		if !back.SameShape(x) {
			t.Fatalf("bands=%d step=%d: shape %v, want %v", c.bands, c.step, back.Shape(), x.Shape())
		}
		for i := range x.Data {
			if back.Data[i] != x.Data[i] {
				t.Fatalf("bands=%d step=%d: round trip not exact at %d: got %v want %v",
					c.bands, c.step, i, back.Data[i], x.Data[i])
			}
		}
	}
}

func TestShiftPlacesBands(t *testing.T) {
	// 2 bands, step 1: band 0 stays, band 1 moves right by one column.
	x := tensor.FromData(1, 2, 1, 3, []float32{
		1, 2, 3,
		4, 5, 6,
	})
	out := Shift(x, 1)
	if out.W != 4 {
		t.Fatalf("padded width: got %d want 4", out.W)
	}
	want := []float32{
		1, 2, 3, 0,
		0, 4, 5, 6,
	}
	for i, w := range want {
		if out.Data[i] != w {
			t.Fatalf("shift content mismatch at %d: got %v want %v", i, out.Data[i], w)
		}
	}
}

func TestForwardAdjointShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := randTensor(rng, 2, 5, 6, 7)
	phi := randTensor(rng, 2, 5, 6, 7)

	y := Forward(x, phi)
	if y.N != 2 || y.C != 1 || y.H != 6 || y.W != 7 {
		t.Fatalf("forward shape: got %v", y.Shape())
	}
	back := Adjoint(y, phi)
	if !back.SameShape(phi) {
		t.Fatalf("adjoint shape: got %v want %v", back.Shape(), phi.Shape())
	}
}

func TestForwardAdjointAreAdjoint(t *testing.T) {
	// <Forward(x), y> == <x, Adjoint(y)> for all x, y: the defining
	// property of an adjoint pair.
	rng := rand.New(rand.NewSource(3))
	x := randTensor(rng, 1, 4, 5, 5)
	phi := randTensor(rng, 1, 4, 5, 5)
	y := randTensor(rng, 1, 1, 5, 5)

	lhs := tensor.Dot(Forward(x, phi).Data, y.Data)
	rhs := tensor.Dot(x.Data, Adjoint(y, phi).Data)
	if diff := lhs - rhs; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("adjoint identity violated: <Ax,y>=%v <x,Aty>=%v", lhs, rhs)
	}
}

func TestShiftMeasurement(t *testing.T) {
	// bands=2, step=1, true width 2, padded width 3.
	y := tensor.FromData(1, 1, 1, 3, []float32{10, 20, 30})
	out := ShiftMeasurement(y, 2, 1)
	want := []float32{
		10, 20, 0, // band 0: columns [0,2)
		0, 20, 30, // band 1: columns [1,3)
	}
	for i, w := range want {
		if out.Data[i] != w {
			t.Fatalf("mismatch at %d: got %v want %v", i, out.Data[i], w)
		}
	}
}

func TestAddNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	y := randTensor(rng, 1, 1, 4, 6)
	orig := y.Clone()

	same := AddNoise(y, 0, 9)
	for i := range y.Data {
		if same.Data[i] != y.Data[i] {
			t.Fatalf("sigma 0 changed value at %d", i)
		}
	}

	a := AddNoise(y, 0.1, 9)
	b := AddNoise(y, 0.1, 9)
	changed := false
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("same seed gave different noise at %d", i)
		}
		if a.Data[i] != y.Data[i] {
			changed = true
		}
	}
	if !changed {
		t.Fatal("noise left the measurement unchanged")
	}

	c := AddNoise(y, 0.1, 10)
	differs := false
	for i := range c.Data {
		if c.Data[i] != a.Data[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatal("different seeds gave identical noise")
	}
	for i := range orig.Data {
		if y.Data[i] != orig.Data[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestSynthesizeMatchesOperators(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cube := randTensor(rng, 1, 3, 4, 6)
	mask := randTensor(rng, 1, 3, 4, 6+2*2)

	got := Synthesize(cube, mask, 2)
	want := Forward(Shift(cube, 2), mask)
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("synthesize mismatch at %d", i)
		}
	}
}
