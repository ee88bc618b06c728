package model

import (
	"fmt"

	"github.com/Mengjie-s/CA2UN/internal/sci"
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// Model is the full unfolding reconstruction network. It owns the fusion
// layer producing the initial estimate and one DADN/LNLT pair per stage
// (or a single shared pair). A Model is safe for concurrent Reconstruct
// calls as long as its parameters are not being mutated.
type Model struct {
	cfg    Config
	ps     *ParamSet
	fusion *conv2d
	dadns  []*dadn
	priors []*lnlt
}

// New builds a model with the given configuration. All parameters start
// at their structural defaults (zero weights, unit norm scales); call
// InitWeights or LoadCheckpoint before reconstructing real data.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("model config: %w", err)
	}
	ps := newParamSet()
	m := &Model{
		cfg:    cfg,
		ps:     ps,
		fusion: newConv2d(ps, "fusion", 2*cfg.Bands, cfg.Bands, 1, 1, 0, 1, true),
	}
	for i := 0; i < cfg.instances(); i++ {
		prefix := ""
		if cfg.Sharing == SharingPerStage {
			prefix = fmt.Sprintf("stage.%d.", i)
		}
		m.dadns = append(m.dadns, newDADN(ps, prefix+"dadn", &m.cfg))
		m.priors = append(m.priors, newLNLT(ps, prefix+"prior", &m.cfg))
	}
	return m, nil
}

// Config returns a copy of the model's configuration.
func (m *Model) Config() Config { return m.cfg }

func (m *Model) stageInstance(i int) int {
	if m.cfg.Sharing == SharingShared {
		return 0
	}
	return i
}

func (m *Model) checkInputs(y, phi tensor.Tensor) error {
	if y.C != 1 {
		return fmt.Errorf("measurement must have one channel, got %d", y.C)
	}
	if phi.C != m.cfg.Bands {
		return fmt.Errorf("mask has %d bands, model expects %d", phi.C, m.cfg.Bands)
	}
	if y.N != phi.N || y.H != phi.H || y.W != phi.W {
		return fmt.Errorf("measurement %v and mask %v disagree on batch or extent",
			y.Shape(), phi.Shape())
	}
	trueW := y.W - (m.cfg.Bands-1)*m.cfg.Step
	if trueW <= 0 {
		return fmt.Errorf("measurement width %d smaller than dispersion extent %d",
			y.W, (m.cfg.Bands-1)*m.cfg.Step)
	}
	if m.cfg.Stage > 0 {
		// The prior reflect-pads the cube to multiples of lnltAlign,
		// which needs the pad to stay below the extent.
		if pad := lnltPad(y.H); pad >= y.H {
			return fmt.Errorf("height %d cannot be reflect-padded to a multiple of %d",
				y.H, lnltAlign)
		}
		if pad := lnltPad(trueW); pad >= trueW {
			return fmt.Errorf("cube width %d cannot be reflect-padded to a multiple of %d",
				trueW, lnltAlign)
		}
	}
	return nil
}

// Reconstruct recovers the spectral cube from a single compressed
// measurement y [B, 1, H, Wp] and its sensing mask phi [B, bands, H, Wp],
// both in the dispersion-shifted frame. The result is the canonical cube
// [B, bands, H, Wp-(bands-1)*step].
func (m *Model) Reconstruct(y, phi tensor.Tensor) (tensor.Tensor, error) {
	outs, err := m.ReconstructStages(y, phi)
	if err != nil {
		return tensor.Tensor{}, err
	}
	return outs[len(outs)-1], nil
}

// ReconstructStages is Reconstruct but returns every stage's intermediate
// estimate in the canonical frame, last entry being the final cube. With
// zero stages the single entry is the fused initial estimate.
func (m *Model) ReconstructStages(y, phi tensor.Tensor) ([]tensor.Tensor, error) {
	if err := m.checkInputs(y, phi); err != nil {
		return nil, err
	}
	cfg := &m.cfg
	step := cfg.Step

	// Initial estimate: fuse the band-aligned measurement with the mask.
	aligned := sci.ShiftMeasurement(y, cfg.Bands, step)
	z := m.fusion.forward(tensor.ConcatChannels(aligned, phi))
	if cfg.Stage == 0 {
		return []tensor.Tensor{sci.Unshift(z, step)}, nil
	}

	zHat := z
	outs := make([]tensor.Tensor, 0, cfg.Stage)
	for i := 0; i < cfg.Stage; i++ {
		inst := m.stageInstance(i)

		phiCur, mu, noise := m.dadns[inst].forward(z, phi)
		if !cfg.WithDL {
			phiCur = phi
		}
		if !cfg.WithMu {
			for n := range mu {
				mu[n] = 1e-6
			}
		}
		phiS := bandEnergy(phiCur)

		// Data-consistency step at the momentum-extrapolated point.
		meas := sci.Forward(zHat, phiCur)
		resid := tensor.New(y.N, 1, y.H, y.W)
		for n := 0; n < y.N; n++ {
			yv := y.Plane(n, 0)
			mv := meas.Plane(n, 0)
			sv := phiS.Plane(n, 0)
			dv := resid.Plane(n, 0)
			for j := range dv {
				dv[j] = (yv[j] - mv[j]) / (mu[n] + sv[j])
			}
		}
		x := sci.Adjoint(resid, phiCur)
		tensor.AddAssign(x, z)

		// Prior step in the canonical frame, conditioned on the
		// estimated noise level when enabled.
		cube := sci.Unshift(x, step)
		in := cube
		if cfg.WithNoiseLevel {
			nm := tensor.New(cube.N, 1, cube.H, cube.W)
			for n := 0; n < cube.N; n++ {
				p := nm.Plane(n, 0)
				for j := range p {
					p[j] = noise[n]
				}
			}
			in = tensor.ConcatChannels(nm, cube)
		}
		denoised := m.priors[inst].forward(in)
		outs = append(outs, denoised)

		zNew := sci.Shift(denoised, step)
		zHat = zNew.Clone()
		for j := range zHat.Data {
			zHat.Data[j] += cfg.MomentumBeta * (zNew.Data[j] - z.Data[j])
		}
		z = zNew
	}
	return outs, nil
}

// bandEnergy is the per-pixel mask energy sum over bands, with exact
// zeros replaced by one so the data step never divides by zero.
func bandEnergy(phi tensor.Tensor) tensor.Tensor {
	s := tensor.New(phi.N, 1, phi.H, phi.W)
	for n := 0; n < phi.N; n++ {
		dst := s.Plane(n, 0)
		for c := 0; c < phi.C; c++ {
			pp := phi.Plane(n, c)
			for i := range dst {
				dst[i] += pp[i] * pp[i]
			}
		}
	}
	for i, v := range s.Data {
		if v == 0 {
			s.Data[i] = 1
		}
	}
	return s
}
