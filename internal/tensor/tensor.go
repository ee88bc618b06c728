package tensor

// Tensor is a dense row-major NCHW float32 tensor.
//
// N is the batch dimension, C the channel count, H and W the spatial
// extent. Data holds the flattened values in N, C, H, W order.
//
// Tensor does not perform any memory safety beyond the checks performed
// by Go's slice types; out-of-range indices will panic.
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// New allocates a zero-initialised tensor with the given dimensions.
func New(n, c, h, w int) Tensor {
	if n < 0 || c < 0 || h < 0 || w < 0 {
		panic("negative dimension for tensor")
	}
	return Tensor{
		N:    n,
		C:    c,
		H:    h,
		W:    w,
		Data: make([]float32, n*c*h*w),
	}
}

// FromData creates a tensor backed by existing data.
// It checks that the data length matches n*c*h*w.
func FromData(n, c, h, w int, data []float32) Tensor {
	if n*c*h*w != len(data) {
		panic("data length mismatch")
	}
	return Tensor{N: n, C: c, H: h, W: w, Data: data}
}

// Len returns the total number of elements.
func (t Tensor) Len() int { return t.N * t.C * t.H * t.W }

// Shape returns the dimensions as a slice, suitable for serialization.
func (t Tensor) Shape() []int { return []int{t.N, t.C, t.H, t.W} }

// SameShape reports whether t and o have identical dimensions.
func (t Tensor) SameShape(o Tensor) bool {
	return t.N == o.N && t.C == o.C && t.H == o.H && t.W == o.W
}

// At returns the element at (n, c, h, w).
func (t Tensor) At(n, c, h, w int) float32 {
	return t.Data[((n*t.C+c)*t.H+h)*t.W+w]
}

// Set stores v at (n, c, h, w).
func (t Tensor) Set(n, c, h, w int, v float32) {
	t.Data[((n*t.C+c)*t.H+h)*t.W+w] = v
}

// Plane returns a view of the (n, c) spatial plane as a slice of length
// H*W. Modifications to the returned slice update the tensor.
func (t Tensor) Plane(n, c int) []float32 {
	start := (n*t.C + c) * t.H * t.W
	return t.Data[start : start+t.H*t.W]
}

// Row returns a view of a single spatial row of length W.
func (t Tensor) Row(n, c, h int) []float32 {
	start := ((n*t.C+c)*t.H + h) * t.W
	return t.Data[start : start+t.W]
}

// Clone returns a deep copy of t.
func (t Tensor) Clone() Tensor {
	out := Tensor{N: t.N, C: t.C, H: t.H, W: t.W, Data: make([]float32, len(t.Data))}
	copy(out.Data, t.Data)
	return out
}

// ConcatChannels concatenates a and b along the channel axis.
// Batch and spatial dimensions must match.
func ConcatChannels(a, b Tensor) Tensor {
	if a.N != b.N || a.H != b.H || a.W != b.W {
		panic("concat: batch/spatial dimension mismatch")
	}
	out := New(a.N, a.C+b.C, a.H, a.W)
	for n := 0; n < a.N; n++ {
		for c := 0; c < a.C; c++ {
			copy(out.Plane(n, c), a.Plane(n, c))
		}
		for c := 0; c < b.C; c++ {
			copy(out.Plane(n, a.C+c), b.Plane(n, c))
		}
	}
	return out
}

// SliceChannels returns a copy of channels [from, to) of x.
func SliceChannels(x Tensor, from, to int) Tensor {
	if from < 0 || to > x.C || from > to {
		panic("channel slice out of range")
	}
	out := New(x.N, to-from, x.H, x.W)
	for n := 0; n < x.N; n++ {
		for c := from; c < to; c++ {
			copy(out.Plane(n, c-from), x.Plane(n, c))
		}
	}
	return out
}

// CropHW returns a copy of the top-left h×w region of every plane.
func CropHW(x Tensor, h, w int) Tensor {
	if h > x.H || w > x.W {
		panic("crop larger than input")
	}
	if h == x.H && w == x.W {
		return x.Clone()
	}
	out := New(x.N, x.C, h, w)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Plane(n, c)
			dst := out.Plane(n, c)
			for row := 0; row < h; row++ {
				copy(dst[row*w:(row+1)*w], src[row*x.W:row*x.W+w])
			}
		}
	}
	return out
}

// PadZero pads every plane with zeros on the right and bottom.
func PadZero(x Tensor, padH, padW int) Tensor {
	if padH == 0 && padW == 0 {
		return x.Clone()
	}
	out := New(x.N, x.C, x.H+padH, x.W+padW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Plane(n, c)
			dst := out.Plane(n, c)
			for row := 0; row < x.H; row++ {
				copy(dst[row*out.W:row*out.W+x.W], src[row*x.W:(row+1)*x.W])
			}
		}
	}
	return out
}

// PadReflect pads every plane on the right and bottom by mirroring
// interior values, matching reflect padding without edge repetition.
// The pad amount must be smaller than the corresponding extent.
func PadReflect(x Tensor, padH, padW int) Tensor {
	if padH == 0 && padW == 0 {
		return x.Clone()
	}
	if padH >= x.H || padW >= x.W {
		panic("reflect pad amount must be smaller than the extent")
	}
	out := New(x.N, x.C, x.H+padH, x.W+padW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Plane(n, c)
			dst := out.Plane(n, c)
			for row := 0; row < out.H; row++ {
				sr := row
				if sr >= x.H {
					sr = 2*(x.H-1) - sr
				}
				for col := 0; col < out.W; col++ {
					sc := col
					if sc >= x.W {
						sc = 2*(x.W-1) - sc
					}
					dst[row*out.W+col] = src[sr*x.W+sc]
				}
			}
		}
	}
	return out
}

// AddAssign adds src to dst element-wise. Shapes must match.
func AddAssign(dst, src Tensor) {
	if !dst.SameShape(src) {
		panic("add: shape mismatch")
	}
	Add(dst.Data, src.Data)
}

// Sum returns a + b as a new tensor.
func Sum(a, b Tensor) Tensor {
	out := a.Clone()
	AddAssign(out, b)
	return out
}

// GlobalAvgPool averages every plane down to 1×1.
func GlobalAvgPool(x Tensor) Tensor {
	out := New(x.N, x.C, 1, 1)
	inv := 1.0 / float32(x.H*x.W)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			var sum float32
			for _, v := range x.Plane(n, c) {
				sum += v
			}
			out.Data[n*x.C+c] = sum * inv
		}
	}
	return out
}
