package model

import (
	"fmt"

	"github.com/Mengjie-s/CA2UN/internal/safetensors"
)

// Parameters exposes the model's parameter registry.
func (m *Model) Parameters() *ParamSet { return m.ps }

// NumParams returns the total learned scalar count.
func (m *Model) NumParams() int { return m.ps.NumParams() }

// InitWeights fills all parameters with a reproducible random
// initialisation.
func (m *Model) InitWeights(seed int64) { m.ps.initRandom(seed) }

// SaveCheckpoint writes every parameter to a safetensors file in
// registration order.
func (m *Model) SaveCheckpoint(path string) error {
	tensors := make([]safetensors.NamedTensor, 0, len(m.ps.list))
	for _, p := range m.ps.list {
		tensors = append(tensors, safetensors.NamedTensor{
			Name:  p.name,
			Shape: p.shape,
			Data:  p.data,
		})
	}
	return safetensors.WriteFloat32(path, tensors)
}

// LoadCheckpoint loads parameters from a safetensors file. Every model
// parameter must be present with the right element count; tensors in the
// file that the model does not know are an error, so a mismatched
// architecture fails loudly rather than running half-initialised.
func (m *Model) LoadCheckpoint(path string) error {
	f, err := safetensors.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer func() { _ = f.Close() }()

	for name := range f.Tensors {
		if _, ok := m.ps.byName[name]; !ok {
			return fmt.Errorf("checkpoint tensor %q has no matching parameter", name)
		}
	}
	for _, p := range m.ps.list {
		values, _, err := f.ReadTensorF32(p.name)
		if err != nil {
			return fmt.Errorf("load parameter %q: %w", p.name, err)
		}
		if err := m.ps.Set(p.name, values); err != nil {
			return err
		}
	}
	return nil
}
