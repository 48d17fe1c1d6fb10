package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 1, CountTokens("hi"))
	assert.Equal(t, 5, CountTokens("check the brake pads"))
	// Long unbroken strings are counted by length.
	assert.Equal(t, 25, CountTokens(strings.Repeat("x", 100)))
}

func TestCountAll(t *testing.T) {
	assert.Equal(t, 6, CountAll([]string{"hi", "check the brake pads"}))
	assert.Zero(t, CountAll(nil))
}
