package tensor

// Conv2d computes a 2-D cross-correlation of x with the weight tensor w.
//
// x is [N, inC, H, W]; w is [outC, inC/groups, kH, kW] with the output
// channel count in w.N. bias may be nil. Padding is symmetric zero
// padding. groups follows the usual convention: groups == inC == outC is
// a depthwise convolution.
func Conv2d(x, w Tensor, bias []float32, stride, pad, groups int) Tensor {
	if stride < 1 {
		panic("conv2d: stride must be >= 1")
	}
	if groups < 1 || x.C%groups != 0 || w.N%groups != 0 {
		panic("conv2d: invalid group count")
	}
	if w.C != x.C/groups {
		panic("conv2d: weight input channels do not match")
	}
	outC := w.N
	outH := (x.H+2*pad-w.H)/stride + 1
	outW := (x.W+2*pad-w.W)/stride + 1
	if outH < 1 || outW < 1 {
		panic("conv2d: kernel larger than padded input")
	}
	icPerGroup := x.C / groups
	ocPerGroup := outC / groups

	out := New(x.N, outC, outH, outW)
	for n := 0; n < x.N; n++ {
		for oc := 0; oc < outC; oc++ {
			g := oc / ocPerGroup
			dst := out.Plane(n, oc)
			var b float32
			if bias != nil {
				b = bias[oc]
			}
			for oh := 0; oh < outH; oh++ {
				ihBase := oh*stride - pad
				for ow := 0; ow < outW; ow++ {
					iwBase := ow*stride - pad
					sum := b
					for ic := 0; ic < icPerGroup; ic++ {
						src := x.Plane(n, g*icPerGroup+ic)
						wPlane := w.Plane(oc, ic)
						for kh := 0; kh < w.H; kh++ {
							ih := ihBase + kh
							if ih < 0 || ih >= x.H {
								continue
							}
							for kw := 0; kw < w.W; kw++ {
								iw := iwBase + kw
								if iw < 0 || iw >= x.W {
									continue
								}
								sum += src[ih*x.W+iw] * wPlane[kh*w.W+kw]
							}
						}
					}
					dst[oh*outW+ow] = sum
				}
			}
		}
	}
	return out
}

// ConvTranspose2d computes a 2-D transposed convolution (fractionally
// strided convolution) of x with w.
//
// x is [N, inC, H, W]; w is [inC, outC, kH, kW] with the input channel
// count in w.N, matching the framework weight layout for transposed
// convolutions. bias may be nil. No output padding; the result is
// [(H-1)*stride + kH, (W-1)*stride + kW] spatially.
func ConvTranspose2d(x, w Tensor, bias []float32, stride int) Tensor {
	if stride < 1 {
		panic("convtranspose2d: stride must be >= 1")
	}
	if w.N != x.C {
		panic("convtranspose2d: weight input channels do not match")
	}
	outC := w.C
	outH := (x.H-1)*stride + w.H
	outW := (x.W-1)*stride + w.W

	out := New(x.N, outC, outH, outW)
	for n := 0; n < x.N; n++ {
		for ic := 0; ic < x.C; ic++ {
			src := x.Plane(n, ic)
			for oc := 0; oc < outC; oc++ {
				dst := out.Plane(n, oc)
				wPlane := w.Plane(ic, oc)
				for h := 0; h < x.H; h++ {
					for wcol := 0; wcol < x.W; wcol++ {
						v := src[h*x.W+wcol]
						if v == 0 {
							continue
						}
						ohBase := h * stride
						owBase := wcol * stride
						for kh := 0; kh < w.H; kh++ {
							row := dst[(ohBase+kh)*outW+owBase:]
							krow := wPlane[kh*w.W:]
							for kw := 0; kw < w.W; kw++ {
								row[kw] += v * krow[kw]
							}
						}
					}
				}
			}
		}
	}
	if bias != nil {
		for n := 0; n < x.N; n++ {
			for oc := 0; oc < outC; oc++ {
				dst := out.Plane(n, oc)
				b := bias[oc]
				for i := range dst {
					dst[i] += b
				}
			}
		}
	}
	return out
}
