package model

import (
	"fmt"
	"math/rand"
)

type paramKind int

const (
	// kindWeight covers convolution and linear projection weights.
	kindWeight paramKind = iota
	// kindBias covers additive biases, zero-initialised.
	kindBias
	// kindNormWeight covers normalization scales, one-initialised.
	kindNormWeight
	// kindBiasTable covers relative-position bias tables.
	kindBiasTable
	// kindToken covers learned global summary tokens.
	kindToken
)

type param struct {
	name  string
	kind  paramKind
	shape []int
	data  []float32
}

// ParamSet is the named registry of every learned tensor in a model.
// Modules register their parameters at construction time; the checkpoint
// loader, saver and weight initialiser all operate on this registry.
type ParamSet struct {
	list   []*param
	byName map[string]*param
}

func newParamSet() *ParamSet {
	return &ParamSet{byName: make(map[string]*param)}
}

// add registers a parameter and returns its freshly allocated backing
// slice. Normalization scales start at one; everything else starts at
// zero. Duplicate names are programmer errors.
func (ps *ParamSet) add(name string, kind paramKind, shape ...int) []float32 {
	if _, ok := ps.byName[name]; ok {
		panic("duplicate parameter name: " + name)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic("invalid parameter shape for " + name)
		}
		n *= d
	}
	p := &param{name: name, kind: kind, shape: shape, data: make([]float32, n)}
	if kind == kindNormWeight {
		for i := range p.data {
			p.data[i] = 1
		}
	}
	ps.list = append(ps.list, p)
	ps.byName[name] = p
	return p.data
}

// Names returns all parameter names in registration order.
func (ps *ParamSet) Names() []string {
	out := make([]string, len(ps.list))
	for i, p := range ps.list {
		out[i] = p.name
	}
	return out
}

// Get returns the backing slice and shape of a named parameter.
func (ps *ParamSet) Get(name string) ([]float32, []int, bool) {
	p, ok := ps.byName[name]
	if !ok {
		return nil, nil, false
	}
	return p.data, p.shape, true
}

// NumParams returns the total scalar parameter count.
func (ps *ParamSet) NumParams() int {
	var n int
	for _, p := range ps.list {
		n += len(p.data)
	}
	return n
}

// Set copies values into a named parameter, checking the length.
func (ps *ParamSet) Set(name string, values []float32) error {
	p, ok := ps.byName[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if len(values) != len(p.data) {
		return fmt.Errorf("parameter %q: got %d values, want %d", name, len(values), len(p.data))
	}
	copy(p.data, values)
	return nil
}

// initRandom fills projection weights and bias tables with truncated
// normal values (std 0.02, clipped to [-2, 2]) and resets everything
// else to its structural default. The seed makes initialisation
// reproducible.
func (ps *ParamSet) initRandom(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, p := range ps.list {
		switch p.kind {
		case kindWeight, kindBiasTable:
			truncNormal(rng, p.data, 0.02)
		case kindNormWeight:
			for i := range p.data {
				p.data[i] = 1
			}
		default:
			for i := range p.data {
				p.data[i] = 0
			}
		}
	}
}

func truncNormal(rng *rand.Rand, x []float32, std float64) {
	for i := range x {
		v := rng.NormFloat64() * std
		if v > 2 {
			v = 2
		} else if v < -2 {
			v = -2
		}
		x[i] = float32(v)
	}
}
