package main

import (
	"fmt"

	"github.com/Mengjie-s/CA2UN/internal/safetensors"
	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// readTensor loads a named tensor from an opened safetensors file. A
// 3-d shape is treated as a single-element batch.
func readTensor(f *safetensors.File, name string) (tensor.Tensor, error) {
	data, info, err := f.ReadTensorF32(name)
	if err != nil {
		return tensor.Tensor{}, err
	}
	switch len(info.Shape) {
	case 3:
		return tensor.FromData(1, info.Shape[0], info.Shape[1], info.Shape[2], data), nil
	case 4:
		return tensor.FromData(info.Shape[0], info.Shape[1], info.Shape[2], info.Shape[3], data), nil
	default:
		return tensor.Tensor{}, fmt.Errorf("tensor %s: expected 3 or 4 dims, got shape %v", name, info.Shape)
	}
}

func namedTensor(name string, t tensor.Tensor) safetensors.NamedTensor {
	return safetensors.NamedTensor{Name: name, Shape: t.Shape(), Data: t.Data}
}
