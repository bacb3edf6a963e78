package limits

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCount(t *testing.T) {
	tests := []struct {
		name     string
		rules    Rules
		tracked  int
		rejected bool
	}{
		{"unlimited", Rules{}, 1000, false},
		{"under_ceiling", Rules{MaxFiles: 3}, 2, false},
		{"at_ceiling", Rules{MaxFiles: 3}, 3, true},
		{"over_ceiling", Rules{MaxFiles: 3}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.rules.CheckCount(tt.tracked)
			if !tt.rejected {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, ViolationMaxFiles, v.Kind)
			assert.True(t, errors.Is(v, ErrTooManyFiles))
		})
	}
}

func TestCheckSize(t *testing.T) {
	rules := Rules{MinFileSize: 10, MaxFileSize: 100}

	tests := []struct {
		name     string
		size     int64
		sentinel error
		kind     ViolationKind
	}{
		{name: "in_window_low", size: 10},
		{name: "in_window_high", size: 100},
		{name: "below_floor", size: 9, sentinel: ErrFileTooSmall, kind: ViolationMinSize},
		{name: "above_ceiling", size: 101, sentinel: ErrFileTooLarge, kind: ViolationMaxSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := rules.CheckSize(tt.size)
			if tt.sentinel == nil {
				assert.Nil(t, v)
				return
			}
			require.NotNil(t, v)
			assert.Equal(t, tt.kind, v.Kind)
			assert.True(t, errors.Is(v, tt.sentinel))
		})
	}

	assert.Nil(t, Rules{}.CheckSize(0), "zero rules disable the window")
}

func TestCheckType(t *testing.T) {
	rules := Rules{FileTypes: []string{"image/*", ".pdf"}}

	assert.Nil(t, rules.CheckType("scan.png", "image/png"))
	assert.Nil(t, rules.CheckType("report.PDF", ""))

	v := rules.CheckType("notes.txt", "text/plain")
	require.NotNil(t, v)
	assert.Equal(t, ViolationFileType, v.Kind)
	assert.True(t, errors.Is(v, ErrTypeNotAllowed))

	assert.Nil(t, Rules{}.CheckType("anything.xyz", ""), "empty list admits all")
}

func TestMatchesType(t *testing.T) {
	tests := []struct {
		pattern  string
		name     string
		mimeType string
		want     bool
	}{
		{"image/*", "photo.png", "image/png", true},
		{"image/png", "photo.png", "image/png", true},
		{"image/*", "clip.mp4", "video/mp4", false},
		{"image/*", "unknown.bin", "", false},
		{"IMAGE/*", "photo.png", "IMAGE/PNG", true},
		{".png", "photo.png", "", true},
		{".png", "photo.PNG", "", true},
		{"png", "photo.png", "", true},
		{".png", "photo.jpg", "", false},
		{" .pdf ", "report.pdf", "", true},
		{"", "anything", "", false},
	}

	for _, tt := range tests {
		got := MatchesType(tt.pattern, tt.name, tt.mimeType)
		assert.Equal(t, tt.want, got, "pattern %q name %q mime %q", tt.pattern, tt.name, tt.mimeType)
	}
}
