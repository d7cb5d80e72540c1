package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
		wantDim int
	}{
		{
			name:    "default is hashing",
			cfg:     ProviderConfig{},
			wantDim: DefaultHashingDimension,
		},
		{
			name:    "hashing with custom dimension",
			cfg:     ProviderConfig{Provider: "hashing", Dimension: 128},
			wantDim: 128,
		},
		{
			name:    "tei",
			cfg:     ProviderConfig{Provider: "tei", BaseURL: "http://localhost:8080", Model: "BAAI/bge-small-en-v1.5"},
			wantDim: 384,
		},
		{
			name:    "unknown provider",
			cfg:     ProviderConfig{Provider: "cloudbrain"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			defer p.Close()
			assert.Equal(t, tt.wantDim, p.Dimension())
		})
	}
}

func TestDetectDimensionFromModel(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"some-large-model", 1024},
		{"unknown", 384},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimensionFromModel(tt.model))
		})
	}
}
