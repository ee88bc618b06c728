package tensor

import (
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Dot computes the dot product of a and b.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Scale multiplies x by s in place.
func Scale(x []float32, s float32) {
	for i := range x {
		x[i] *= s
	}
}

// Softmax applies the softmax function to x.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}

// GELU computes the exact Gaussian Error Linear Unit activation.
func GELU(x float32) float32 {
	return float32(0.5 * float64(x) * (1.0 + math.Erf(float64(x)/math.Sqrt2)))
}

// ReLU computes the rectified linear activation.
func ReLU(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

// Softplus computes log(1+exp(x)) with overflow protection.
func Softplus(x float32) float32 {
	if x > 20 {
		return x
	}
	return float32(math.Log1p(math.Exp(float64(x))))
}

// ApplyGELU applies GELU to every element of x in place.
func ApplyGELU(x []float32) {
	for i := range x {
		x[i] = GELU(x[i])
	}
}

// ApplyReLU applies ReLU to every element of x in place.
func ApplyReLU(x []float32) {
	for i := range x {
		x[i] = ReLU(x[i])
	}
}

// Linear computes dst = W*x + b for a row-major weight matrix W of shape
// [len(dst), len(x)]. bias may be nil.
func Linear(dst []float32, w []float32, x []float32, bias []float32) {
	in := len(x)
	for o := range dst {
		dst[o] = Dot(w[o*in:(o+1)*in], x)
	}
	if bias != nil {
		Add(dst, bias)
	}
}
