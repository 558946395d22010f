package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimEach(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil stays nil", nil, nil},
		{"empty stays empty", []string{}, []string{}},
		{"photo list keeps order and repeats", []string{
			" https://img.example.org/b.jpg",
			"https://img.example.org/a.jpg",
			"https://img.example.org/b.jpg ",
			"   ",
		}, []string{"https://img.example.org/b.jpg", "https://img.example.org/a.jpg", "https://img.example.org/b.jpg", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimEach(tt.input))
		})
	}
}

func TestTrimEachDoesNotAliasInput(t *testing.T) {
	in := []string{" a "}
	_ = TrimEach(in)
	assert.Equal(t, " a ", in[0])
}

func TestTrimPtr(t *testing.T) {
	s := "  Lagos "
	TrimPtr(&s)
	assert.Equal(t, "Lagos", s)
	TrimPtr(nil)
}
