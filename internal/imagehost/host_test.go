package imagehost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicID(t *testing.T) {
	cases := map[string]string{
		"https://cdn.example.com/books/cq2v7l3m1s4j8bq0g0p0.png":      "cq2v7l3m1s4j8bq0g0p0",
		"http://localhost:8080/uploads/cq2v7l3m1s4j8bq0g0p0.jpg?v=2":   "cq2v7l3m1s4j8bq0g0p0",
		"https://res.cloudinary.com/demo/image/upload/v1/sample.webp": "sample",
		"https://example.com/noext":                                   "noext",
		"https://example.com/":                                        "",
		"":                                                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, PublicID(in), "PublicID(%q)", in)
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("cq2v7l3m1s4j8bq0g0p0"))
	assert.False(t, validID(""))
	assert.False(t, validID("../etc/passwd"))
	assert.False(t, validID("a/b"))
	assert.False(t, validID("*"))
	assert.False(t, validID("a.png"))
}
