// Package model implements the CA2UN deep-unfolding reconstruction
// network: a degradation-aware parameter estimator (DADN), a hierarchical
// local/non-local transformer prior (LNLT) and the momentum-accelerated
// unfolding controller that alternates data-consistency and denoising
// steps over a fixed number of stages.
package model

import "fmt"

// FFNVariant selects the channel-mixing block used inside transformer
// sub-blocks.
type FFNVariant string

const (
	// FFNGatedDConv is the gated depthwise-convolution feed-forward
	// network (GDFN).
	FFNGatedDConv FFNVariant = "gdfn"
	// FFNPlain is the plain 1x1 / depthwise-3x3 / 1x1 convolutional MLP.
	FFNPlain FFNVariant = "plain"
)

// NormVariant selects the per-pixel channel normalization.
type NormVariant string

const (
	// NormBiasFree normalizes by variance only, with a learned scale.
	NormBiasFree NormVariant = "bias_free"
	// NormWithBias subtracts the mean and applies a learned affine.
	NormWithBias NormVariant = "with_bias"
)

// ParamSharing controls whether one DADN/LNLT instance is shared across
// all unfolding stages or each stage owns its own instance.
type ParamSharing string

const (
	SharingShared   ParamSharing = "shared"
	SharingPerStage ParamSharing = "per_stage"
)

// Config is the full architecture configuration of the reconstruction
// network. It is loadable from YAML and validated at construction time.
type Config struct {
	// Stage is the number of unfolding iterations. Zero is legal and
	// returns the fused initial estimate.
	Stage int `yaml:"stage"`
	// Sharing selects shared vs per-stage DADN/LNLT parameters.
	Sharing ParamSharing `yaml:"sharing"`

	// Bands is the spectral band count; Step the per-band dispersion
	// shift in pixels.
	Bands int `yaml:"bands"`
	Step  int `yaml:"step"`

	// Dim is the base channel width of the prior network.
	Dim int `yaml:"dim"`
	// WindowSize is the side length of the local attention window.
	WindowSize int `yaml:"window_size"`
	// GlobalTokens is the number of learned global summary tokens per
	// attention block.
	GlobalTokens int `yaml:"global_tokens"`
	// NumBlocks holds the transformer depth per resolution level:
	// encoder 0, encoder 1, bottleneck, decoder 1, decoder 0.
	NumBlocks [5]int `yaml:"num_blocks"`

	FFN  FFNVariant  `yaml:"ffn"`
	Norm NormVariant `yaml:"norm"`
	// FFNExpand is the GDFN expansion factor; FFNMult the plain MLP
	// multiplier.
	FFNExpand float64 `yaml:"ffn_expand"`
	FFNMult   int     `yaml:"ffn_mult"`

	// NonLocal enables the windowed local/global attention term. When
	// false the attention term is the identity.
	NonLocal bool `yaml:"non_local"`
	// WithDL enables the learned mask refinement.
	WithDL bool `yaml:"with_dl"`
	// WithMu enables the learned step size; when false mu is pinned to
	// a tiny constant.
	WithMu bool `yaml:"with_mu"`
	// WithNoiseLevel conditions the prior on the estimated noise level.
	WithNoiseLevel bool `yaml:"with_noise_level"`

	// MomentumBeta is the per-stage momentum coefficient of the
	// extrapolation step.
	MomentumBeta float32 `yaml:"momentum_beta"`
}

// DefaultConfig returns the reference configuration: 28 bands, step 2,
// five unfolding stages with per-stage parameters.
func DefaultConfig() Config {
	return Config{
		Stage:          5,
		Sharing:        SharingPerStage,
		Bands:          28,
		Step:           2,
		Dim:            28,
		WindowSize:     8,
		GlobalTokens:   1,
		NumBlocks:      [5]int{1, 1, 1, 1, 1},
		FFN:            FFNGatedDConv,
		Norm:           NormBiasFree,
		FFNExpand:      2.66,
		FFNMult:        4,
		NonLocal:       true,
		WithDL:         true,
		WithMu:         true,
		WithNoiseLevel: true,
		MomentumBeta:   0.5,
	}
}

// Validate checks the configuration for internal consistency. It is
// called by New; configuration errors surface before any computation.
func (c *Config) Validate() error {
	if c.Stage < 0 {
		return fmt.Errorf("stage count must be >= 0, got %d", c.Stage)
	}
	switch c.Sharing {
	case SharingShared, SharingPerStage:
	default:
		return fmt.Errorf("unknown parameter sharing mode %q", c.Sharing)
	}
	if c.Bands <= 0 {
		return fmt.Errorf("band count must be > 0, got %d", c.Bands)
	}
	if c.Step < 0 {
		return fmt.Errorf("dispersion step must be >= 0, got %d", c.Step)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("base channel width must be > 0, got %d", c.Dim)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be > 0, got %d", c.WindowSize)
	}
	if c.GlobalTokens <= 0 {
		return fmt.Errorf("global token count must be > 0, got %d", c.GlobalTokens)
	}
	for i, n := range c.NumBlocks {
		if n <= 0 {
			return fmt.Errorf("num_blocks[%d] must be > 0, got %d", i, n)
		}
	}
	switch c.FFN {
	case FFNGatedDConv, FFNPlain:
	default:
		return fmt.Errorf("unknown feed-forward variant %q", c.FFN)
	}
	switch c.Norm {
	case NormBiasFree, NormWithBias:
	default:
		return fmt.Errorf("unknown normalization variant %q", c.Norm)
	}
	if c.FFN == FFNGatedDConv && c.FFNExpand <= 0 {
		return fmt.Errorf("ffn expansion factor must be > 0, got %v", c.FFNExpand)
	}
	if c.FFN == FFNPlain && c.FFNMult <= 0 {
		return fmt.Errorf("ffn multiplier must be > 0, got %d", c.FFNMult)
	}
	if c.MomentumBeta < 0 {
		return fmt.Errorf("momentum beta must be >= 0, got %v", c.MomentumBeta)
	}
	return nil
}

// priorInDim is the prior network's input channel count: the band count
// plus one noise-level channel when noise conditioning is enabled.
func (c *Config) priorInDim() int {
	if c.WithNoiseLevel {
		return c.Bands + 1
	}
	return c.Bands
}

// instances returns how many DADN/LNLT instances the controller owns.
func (c *Config) instances() int {
	if c.Sharing == SharingShared || c.Stage == 0 {
		return 1
	}
	return c.Stage
}
