package providers

import "testing"

func TestTokenCounter_CountTokens(t *testing.T) {
	counter, err := newTokenCounter()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		text     string
		expected int
	}{
		{"Hello, world!", 4},
		{"Another text", 2},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			count, err := counter.CountTokens(tt.text)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if count != tt.expected {
				t.Errorf("Expected %d but got %d", tt.expected, count)
			}
		})
	}
}
