package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAllowedOrigins(t *testing.T) {
	origins := BuildAllowedOrigins("https://app.example.com", " https://a.example.com, ,https://b.example.com")

	assert.Equal(t, []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"https://app.example.com",
		"https://a.example.com",
		"https://b.example.com",
	}, origins)
}

func TestBuildAllowedOriginsDefaultsOnly(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, BuildAllowedOrigins("", ""))
}
