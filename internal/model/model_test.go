package model

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMetadataIsValid(t *testing.T) {
	if err := DefaultMetadata().Validate(); err != nil {
		t.Fatalf("expected default metadata to validate, got %v", err)
	}
	if got := DefaultMetadata().InputLen(); got != 48*48 {
		t.Fatalf("expected input length 2304, got %d", got)
	}
	if got := DefaultMetadata().OutputLen(); got != 7 {
		t.Fatalf("expected output length 7, got %d", got)
	}
}

func TestValidateRejectsContractChanges(t *testing.T) {
	tests := map[string]func(*Metadata){
		"input shape":  func(m *Metadata) { m.InputShape = []int64{1, 3, 48, 48} },
		"output shape": func(m *Metadata) { m.OutputShape = []int64{1, 8} },
		"image size":   func(m *Metadata) { m.ImageSize = 64 },
		"class order":  func(m *Metadata) { m.Classes[0], m.Classes[1] = m.Classes[1], m.Classes[0] },
		"class count":  func(m *Metadata) { m.Classes = m.Classes[:6] },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			m := DefaultMetadata()
			mutate(&m)
			if err := m.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadMetadataDefaultsTensorNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	body := `{"input_shape":[1,48,48,1],"output_shape":[1,7],"image_size":48,
"classes":["anger","disgust","fear","happiness","sadness","surprise","neutral"]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	m, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.InputName != "input" || m.OutputName != "output" {
		t.Fatalf("unexpected tensor names %q/%q", m.InputName, m.OutputName)
	}
}

func TestLoadMetadataFailures(t *testing.T) {
	if _, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if _, err := LoadMetadata(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestONNXLoaderMissingModel(t *testing.T) {
	loader, err := NewONNXLoader(filepath.Join(t.TempDir(), "absent.onnx"), DefaultMetadata())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	session, err := loader.Load(context.Background())
	if !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
	if session != nil {
		t.Fatal("expected nil session on failure")
	}
}

func TestNewONNXLoaderRejectsBadMetadata(t *testing.T) {
	m := DefaultMetadata()
	m.OutputShape = []int64{1, 3}
	if _, err := NewONNXLoader("model.onnx", m); err == nil {
		t.Fatal("expected error for invalid metadata")
	}
}
