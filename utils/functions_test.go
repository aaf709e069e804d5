package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeVMName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces and punctuation", "My VM! (2024)", "MyVM2024"},
		{"only punctuation", "***", ""},
		{"already clean", "Win11Image", "Win11Image"},
		{"keeps underscore and dash", "win_11-image", "win_11-image"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeVMName(tt.in))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.00 KB", FormatBytes(1024))
	assert.Equal(t, "4.00 GB", FormatBytes(4*1024*1024*1024))
}
