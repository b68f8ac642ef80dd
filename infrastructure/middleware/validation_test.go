package middleware

import "testing"

func TestIsValidHex(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0xabcdef0123456789", true},
		{"abcdef0123456789", true},
		{"", false},
		{"0xnothex", false},
		{"not-hex-at-all", false},
	}
	for _, c := range cases {
		if got := IsValidHex(c.in); got != c.want {
			t.Errorf("IsValidHex(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123e4567-e89b-12d3-a456-426614174000", true},
		{"does-not-exist", false},
		{"", false},
		{"123e4567e89b12d3a456426614174000", false},
	}
	for _, c := range cases {
		if got := IsValidUUID(c.in); got != c.want {
			t.Errorf("IsValidUUID(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
