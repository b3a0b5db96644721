package ansi

import "testing"

func TestStrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello world", "hello world"},
		{"color codes", "\x1b[32mready\x1b[0m on port 3000", "ready on port 3000"},
		{"carriage return dropped", "progress\r", "progress"},
		{"backspace erases", "abcd\b\bX", "abX"},
		{"osc title", "\x1b]0;my-app\x07output", "output"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
		{"control bytes dropped", "a\x00\x01b", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Strip(tt.in); got != tt.want {
				t.Errorf("Strip(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
