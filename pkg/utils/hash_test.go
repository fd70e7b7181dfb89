package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringDeterministic(t *testing.T) {
	assert.Equal(t, HashString("alice"), HashString("alice"))
	assert.NotEqual(t, HashString("alice"), HashString("bob"))
	assert.Len(t, HashString("anything"), 32)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "alice", SafeName("alice"))
	assert.Equal(t, "user-1_a.b", SafeName("user-1_a.b"))

	hashed := SafeName("user/with spaces?")
	assert.Len(t, hashed, 32)
	assert.Equal(t, hashed, SafeName("user/with spaces?"))

	assert.Len(t, SafeName(""), 32)
}

func TestSafeNameNeverYieldsPathComponents(t *testing.T) {
	for _, input := range []string{".", "..", ".hidden"} {
		name := SafeName(input)
		assert.Len(t, name, 32, "input %q must be hashed", input)
		assert.NotContains(t, name, ".")
	}
}
