package errors

import (
	"testing"
)

func TestValidateImageID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid png", "cat_001.png", false},
		{"valid with spaces", "my photo.JPG", false},
		{"valid unicode", "żółw.webp", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"slash", "a/b.png", true},
		{"backslash", "a\\b.png", true},
		{"parent", "..", true},
		{"hidden", ".DS_Store", true},
		{"control char", "a\x01.png", true},
		{"newline", "a\n.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImageID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateImageID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "images", false},
		{"nested", "thumbs/small", false},
		{"file", "atlas.png", false},

		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../secret", true},
		{"backslash", "a\\b", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{".png", false},
		{".jpeg", false},
		{".avif", false},
		{"png", true},
		{".", true},
		{".p/g", true},
	}

	for _, tt := range tests {
		err := ValidateExtension(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateExtension(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
