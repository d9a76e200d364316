package pseudonym

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash_Deterministic(t *testing.T) {
	a := Hash("anna.schmidt@example.org")
	b := Hash("anna.schmidt@example.org")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHash_DistinctInputs(t *testing.T) {
	assert.NotEqual(t, Hash("anna.schmidt@example.org"), Hash("max.muster@example.org"))
}

func TestHash_NotRecoverable(t *testing.T) {
	in := "anna.schmidt@example.org"
	out := Hash(in)
	assert.NotContains(t, out, "anna")
	assert.NotContains(t, out, "@")
	for _, ch := range out {
		if !strings.ContainsRune("0123456789abcdef", ch) {
			t.Fatalf("digest contains non-hex character %q", ch)
		}
	}
}

func TestShort_PrefixOfHash(t *testing.T) {
	assert.Equal(t, Hash("x")[:16], Short("x"))
	assert.Len(t, Short("x"), 16)
}
