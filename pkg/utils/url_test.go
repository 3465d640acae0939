package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToAbsoluteURL(t *testing.T) {
	base, err := url.Parse("https://smashwiki.info")
	require.NoError(t, err)

	tests := []struct {
		name     string
		relative string
		want     string
	}{
		{"root relative", "/images/thumb/a/ab/Mario.png", "https://smashwiki.info/images/thumb/a/ab/Mario.png"},
		{"protocol relative", "//cdn.example.org/x.png", "https://cdn.example.org/x.png"},
		{"absolute", "http://other.example.com/y.png", "http://other.example.com/y.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToAbsoluteURL(base, tt.relative)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHashURL_Stable(t *testing.T) {
	a := HashURL("https://smashwiki.info/a.png")
	b := HashURL("https://smashwiki.info/a.png")
	c := HashURL("https://smashwiki.info/b.png")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
