package auth

import (
	"testing"
)

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		if len(code) != CodeDigits {
			t.Fatalf("len(code) = %d, want %d (%q)", len(code), CodeDigits, code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("code contains non-digit %q: %s", c, code)
			}
		}
	}
}

func TestGenerateCode_Spread(t *testing.T) {
	// Leading digit should take every value over enough draws, zero included.
	seen := make(map[byte]bool)
	for i := 0; i < 5000; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}
		seen[code[0]] = true
	}
	for d := byte('0'); d <= '9'; d++ {
		if !seen[d] {
			t.Errorf("leading digit %q never generated", d)
		}
	}
}

func TestCodeEqual(t *testing.T) {
	stored := HashCode("048213")

	tests := []struct {
		name      string
		submitted string
		want      bool
	}{
		{name: "exact match", submitted: "048213", want: true},
		{name: "leading zero dropped", submitted: "48213", want: false},
		{name: "different code", submitted: "048214", want: false},
		{name: "empty", submitted: "", want: false},
		{name: "padded", submitted: " 048213", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeEqual(tt.submitted, stored); got != tt.want {
				t.Errorf("CodeEqual(%q) = %v, want %v", tt.submitted, got, tt.want)
			}
		})
	}
}
