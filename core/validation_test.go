package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateNamespaceKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid key", key: "support-bot-1-1700000000", wantErr: false},
		{name: "unicode key", key: "bot-ünïcødé", wantErr: false},
		{name: "empty key", key: "", wantErr: true},
		{name: "newline", key: "bot\n1", wantErr: true},
		{name: "nul byte", key: "bot\x001", wantErr: true},
		{name: "too long", key: strings.Repeat("k", MaxNamespaceKeyLength+1), wantErr: true},
		{name: "exactly max length", key: strings.Repeat("k", MaxNamespaceKeyLength), wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNamespaceKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateNamespaceKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidNamespace) {
				t.Errorf("ValidateNamespaceKey() error should wrap ErrInvalidNamespace, got %v", err)
			}
		})
	}
}

func TestValidateChunk(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		dim     int
		wantErr error
	}{
		{
			name:  "valid chunk",
			chunk: &Chunk{ID: "doc_0", Text: "hello", Vector: []float32{0.1, 0.2, 0.3}},
			dim:   3,
		},
		{
			name:    "nil chunk",
			chunk:   nil,
			dim:     3,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "empty id",
			chunk:   &Chunk{Text: "hello", Vector: []float32{0.1, 0.2, 0.3}},
			dim:     3,
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "short vector",
			chunk:   &Chunk{ID: "doc_0", Vector: []float32{0.1, 0.2}},
			dim:     3,
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "missing vector",
			chunk:   &Chunk{ID: "doc_0"},
			dim:     3,
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.chunk, tt.dim)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrUnsupportedDocument_WrapsErrExtraction(t *testing.T) {
	if !errors.Is(ErrUnsupportedDocument, ErrExtraction) {
		t.Error("ErrUnsupportedDocument should wrap ErrExtraction")
	}
}
