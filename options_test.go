package resumable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptionsDefaults(t *testing.T) {
	o := NewOptions()

	assert.Equal(t, int64(DefaultChunkSize), o.ChunkSize)
	assert.False(t, o.ForceChunkSize)
	assert.Equal(t, 3, o.SimultaneousUploads)
	assert.True(t, o.TestChunks)
	assert.Equal(t, 5, o.MaxChunkRetries)
	assert.Equal(t, []int{400, 404, 409, 415, 500, 501}, o.PermanentErrors)
	assert.Equal(t, []int{200, 201, 202}, o.SuccessStatuses)
	assert.Equal(t, DefaultProgressThrottle, o.ProgressThrottle)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr error
	}{
		{
			name:    "missing_adapter",
			mutate:  func(o *Options) { o.Adapter = nil },
			wantErr: ErrAdapterRequired,
		},
		{
			name:    "zero_chunk_size",
			mutate:  func(o *Options) { o.ChunkSize = 0 },
			wantErr: ErrInvalidChunkSize,
		},
		{
			name:    "negative_chunk_size",
			mutate:  func(o *Options) { o.ChunkSize = -1 },
			wantErr: ErrInvalidChunkSize,
		},
		{
			name:    "zero_concurrency",
			mutate:  func(o *Options) { o.SimultaneousUploads = 0 },
			wantErr: ErrInvalidConcurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			o.Adapter = newMockAdapter()
			tt.mutate(o)

			cl, err := New(o)
			assert.Nil(t, cl)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewNilOptionsRequiresAdapter(t *testing.T) {
	cl, err := New(nil)
	assert.Nil(t, cl)
	assert.ErrorIs(t, err, ErrAdapterRequired)
}

func TestStatusClassification(t *testing.T) {
	o := NewOptions()

	for _, code := range []int{200, 201, 202} {
		assert.True(t, o.isSuccessStatus(code), "code %d", code)
	}
	for _, code := range []int{400, 404, 409, 415, 500, 501} {
		assert.True(t, o.isPermanentStatus(code), "code %d", code)
		assert.False(t, o.isSuccessStatus(code), "code %d", code)
	}
	// Everything else is transient.
	for _, code := range []int{408, 429, 502, 503} {
		assert.False(t, o.isSuccessStatus(code), "code %d", code)
		assert.False(t, o.isPermanentStatus(code), "code %d", code)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512", 512},
		{"64KiB", 64 * 1024},
		{"1MiB", 1024 * 1024},
		{"2gb", 2 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseByteSize("not-a-size")
	assert.Error(t, err)
}
