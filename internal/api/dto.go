package api

import (
	"fmt"

	"github.com/Mengjie-s/CA2UN/internal/tensor"
)

// TensorPayload is the wire form of a dense NCHW tensor.
type TensorPayload struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func payloadFromTensor(t tensor.Tensor) TensorPayload {
	return TensorPayload{Shape: t.Shape(), Data: t.Data}
}

func (p TensorPayload) toTensor(field string) (tensor.Tensor, error) {
	if len(p.Shape) != 4 {
		return tensor.Tensor{}, fmt.Errorf("%s: shape must have 4 dimensions, got %d", field, len(p.Shape))
	}
	n := 1
	for _, d := range p.Shape {
		if d <= 0 {
			return tensor.Tensor{}, fmt.Errorf("%s: invalid dimension %d", field, d)
		}
		n *= d
	}
	if n != len(p.Data) {
		return tensor.Tensor{}, fmt.Errorf("%s: shape %v wants %d values, got %d", field, p.Shape, n, len(p.Data))
	}
	return tensor.FromData(p.Shape[0], p.Shape[1], p.Shape[2], p.Shape[3], p.Data), nil
}

// ReconstructionRequest carries one measurement/mask pair, both in the
// dispersion-shifted frame.
type ReconstructionRequest struct {
	Measurement TensorPayload `json:"measurement"`
	Mask        TensorPayload `json:"mask"`
	// ReturnStages includes every intermediate stage estimate in the
	// response.
	ReturnStages bool `json:"return_stages,omitempty"`
}

// ReconstructionResponse is the recovered cube plus bookkeeping.
type ReconstructionResponse struct {
	ID         string          `json:"id"`
	Object     string          `json:"object"`
	CreatedAt  int64           `json:"created_at"`
	Status     string          `json:"status"`
	DurationMS int64           `json:"duration_ms"`
	Cube       TensorPayload   `json:"cube"`
	Stages     []TensorPayload `json:"stages,omitempty"`
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	Bands     int    `json:"bands"`
	Step      int    `json:"step"`
	Dim       int    `json:"dim"`
	Stages    int    `json:"stages"`
	Sharing   string `json:"sharing"`
	NumParams int    `json:"num_params"`
	Version   string `json:"version"`
}

// ErrorBody is the error envelope of every non-2xx response.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
