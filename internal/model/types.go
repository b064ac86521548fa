package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/fer-classifier/internal/emotion"
	"github.com/Brownie44l1/fer-classifier/internal/preprocess"
)

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name,omitempty"`
	OutputName  string   `json:"output_name,omitempty"`
}

// DefaultMetadata describes the packaged emotion model.
func DefaultMetadata() Metadata {
	classes := make([]string, len(emotion.Classes))
	for i, c := range emotion.Classes {
		classes[i] = c.String()
	}
	return Metadata{
		InputShape:  preprocess.Shape(),
		OutputShape: []int64{1, int64(len(emotion.Classes))},
		Classes:     classes,
		ImageSize:   preprocess.ImageSize,
		InputName:   defaultInputName,
		OutputName:  defaultOutputName,
	}
}

func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.InputName == "" {
		metadata.InputName = defaultInputName
	}
	if metadata.OutputName == "" {
		metadata.OutputName = defaultOutputName
	}
	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// Validate checks the metadata against the fixed (1,48,48,1) -> (1,7) contract
// and the class order the decision step relies on.
func (m Metadata) Validate() error {
	if !equalShape(m.InputShape, preprocess.Shape()) {
		return fmt.Errorf("input shape %v, want %v", m.InputShape, preprocess.Shape())
	}
	wantOut := []int64{1, int64(len(emotion.Classes))}
	if !equalShape(m.OutputShape, wantOut) {
		return fmt.Errorf("output shape %v, want %v", m.OutputShape, wantOut)
	}
	if m.ImageSize != 0 && m.ImageSize != preprocess.ImageSize {
		return fmt.Errorf("image size %d, want %d", m.ImageSize, preprocess.ImageSize)
	}
	if len(m.Classes) != len(emotion.Classes) {
		return fmt.Errorf("metadata lists %d classes, want %d", len(m.Classes), len(emotion.Classes))
	}
	for i, name := range m.Classes {
		if name != emotion.Classes[i].String() {
			return fmt.Errorf("class %d is %q, want %q", i, name, emotion.Classes[i])
		}
	}
	return nil
}

// InputLen is the number of float32 values one forward pass consumes.
func (m Metadata) InputLen() int {
	return flatLen(m.InputShape)
}

func (m Metadata) OutputLen() int {
	return flatLen(m.OutputShape)
}

func flatLen(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
