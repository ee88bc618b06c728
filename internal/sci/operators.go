// Package sci implements the physical sensing model of a coded-aperture
// snapshot spectral imager: the mask forward/adjoint operators and the
// per-band dispersion shift that aligns spectral bands with the sensor's
// staggered sampling geometry.
//
// All functions are pure: inputs are never mutated and results are
// freshly allocated. Shape mismatches are programmer errors and panic;
// callers validate external inputs before reaching this layer.
package sci

import (
	"math/rand"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// Forward applies the coded-aperture mask to a multi-band cube and sums
// over the band axis, producing the single sensor-plane measurement.
// x and phi are [B, bands, H, W]; the result is [B, 1, H, W].
func Forward(x, phi tensor.Tensor) tensor.Tensor {
	if !x.SameShape(phi) {
		panic("sci: cube and mask shapes differ")
	}
	y := tensor.New(x.N, 1, x.H, x.W)
	for n := 0; n < x.N; n++ {
		dst := y.Plane(n, 0)
		for c := 0; c < x.C; c++ {
			xp := x.Plane(n, c)
			pp := phi.Plane(n, c)
			for i := range dst {
				dst[i] += xp[i] * pp[i]
			}
		}
	}
	return y
}

// Adjoint broadcasts a sensor-plane residual back across all bands and
// multiplies by the mask. y is [B, 1, H, W]; phi is [B, bands, H, W];
// the result has the mask's shape.
func Adjoint(y, phi tensor.Tensor) tensor.Tensor {
	if y.C != 1 || y.N != phi.N || y.H != phi.H || y.W != phi.W {
		panic("sci: residual and mask shapes differ")
	}
	x := tensor.New(phi.N, phi.C, phi.H, phi.W)
	for n := 0; n < phi.N; n++ {
		src := y.Plane(n, 0)
		for c := 0; c < phi.C; c++ {
			pp := phi.Plane(n, c)
			dst := x.Plane(n, c)
			for i := range dst {
				dst[i] = src[i] * pp[i]
			}
		}
	}
	return x
}

// Shift models per-band ray dispersion: the width is padded by
// (bands-1)*step and band i is circularly rotated by i*step along the
// width axis. The input is placed in the leftmost columns of the padded
// plane before rotation, so the rotation moves real content right and
// wraps only zeros for in-range shifts.
func Shift(x tensor.Tensor, step int) tensor.Tensor {
	if step < 0 {
		panic("sci: negative dispersion step")
	}
	padW := (x.C - 1) * step
	out := tensor.New(x.N, x.C, x.H, x.W+padW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Plane(n, c)
			dst := out.Plane(n, c)
			rot := (c * step) % out.W
			for h := 0; h < x.H; h++ {
				srcRow := src[h*x.W : (h+1)*x.W]
				dstRow := dst[h*out.W : (h+1)*out.W]
				for w, v := range srcRow {
					dstRow[(w+rot)%out.W] = v
				}
			}
		}
	}
	return out
}

// Unshift is the exact inverse of Shift: it rotates each band back by
// i*step and crops the width padding, so Unshift(Shift(x, s), s) == x
// bit-for-bit for any contents.
func Unshift(x tensor.Tensor, step int) tensor.Tensor {
	if step < 0 {
		panic("sci: negative dispersion step")
	}
	padW := (x.C - 1) * step
	if padW >= x.W {
		panic("sci: width smaller than dispersion extent")
	}
	outW := x.W - padW
	out := tensor.New(x.N, x.C, x.H, outW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.Plane(n, c)
			dst := out.Plane(n, c)
			rot := (c * step) % x.W
			for h := 0; h < x.H; h++ {
				srcRow := src[h*x.W : (h+1)*x.W]
				dstRow := dst[h*outW : (h+1)*outW]
				for w := range dstRow {
					dstRow[w] = srcRow[(w+rot)%x.W]
				}
			}
		}
	}
	return out
}

// ShiftMeasurement re-aligns a raw sensor measurement with the staggered
// band geometry: band i of the result holds the measurement columns
// [i*step, i*step+W) at those same positions, where W is the true
// (un-dispersed) width. y is [B, 1, H, Wp]; the result is
// [B, bands, H, Wp].
func ShiftMeasurement(y tensor.Tensor, bands, step int) tensor.Tensor {
	if y.C != 1 {
		panic("sci: measurement must be single-plane")
	}
	trueW := y.W - (bands-1)*step
	if trueW <= 0 {
		panic("sci: measurement narrower than dispersion extent")
	}
	out := tensor.New(y.N, bands, y.H, y.W)
	for n := 0; n < y.N; n++ {
		src := y.Plane(n, 0)
		for c := 0; c < bands; c++ {
			dst := out.Plane(n, c)
			off := c * step
			for h := 0; h < y.H; h++ {
				copy(dst[h*y.W+off:h*y.W+off+trueW], src[h*y.W+off:h*y.W+off+trueW])
			}
		}
	}
	return out
}

// AddNoise adds zero-mean Gaussian noise with the given standard
// deviation to a copy of the measurement. The seed makes synthetic
// datasets reproducible.
func AddNoise(y tensor.Tensor, sigma float64, seed int64) tensor.Tensor {
	out := y.Clone()
	if sigma <= 0 {
		return out
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range out.Data {
		out.Data[i] += float32(rng.NormFloat64() * sigma)
	}
	return out
}

// Synthesize generates a sensor measurement from a ground-truth cube and
// a sensing mask: the cube is dispersion-shifted, masked and summed over
// bands. cube is [B, bands, H, W]; mask is [B, bands, H, W+(bands-1)*step].
func Synthesize(cube, mask tensor.Tensor, step int) tensor.Tensor {
	shifted := Shift(cube, step)
	if !shifted.SameShape(mask) {
		panic("sci: mask does not match the shifted cube")
	}
	return Forward(shifted, mask)
}
