package target

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/netpulse/internal/perr"
)

// S5 — slugify examples from the spec.
func TestSlugify_Examples(t *testing.T) {
	assert.Equal(t, "cloudflare-dns", Slugify("Cloudflare DNS"))
	assert.Equal(t, "hello-world", Slugify("  hello  world "))
	assert.Equal(t, "ab", Slugify("A—B"))
}

func TestSlugify_Empty(t *testing.T) {
	assert.Equal(t, "", Slugify("---"))
	assert.Equal(t, "", Slugify(""))
	assert.Equal(t, "", Slugify("——"))
}

func TestNew_InvalidLabelRejected(t *testing.T) {
	_, err := New("127.0.0.1", 80, "---")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrInvalidTarget))
}

func TestNew_InvalidHostRejected(t *testing.T) {
	_, err := New("", 80, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrInvalidTarget))
}

func TestValidateSet_TooMany(t *testing.T) {
	var targets []Target
	for i := 0; i < MaxTargets+1; i++ {
		tgt, err := New("127.0.0.1", 80, fmt.Sprintf("target-%d", i))
		require.NoError(t, err)
		targets = append(targets, tgt)
	}
	err := ValidateSet(targets)
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrTooManyTargets))
}

func TestValidateSet_Duplicate(t *testing.T) {
	a, _ := New("127.0.0.1", 80, "dup")
	b, _ := New("127.0.0.1", 81, "DUP")
	err := ValidateSet([]Target{a, b})
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.ErrDuplicateTarget))
}

// Invariant 9 — slugify idempotence for any input that produces a
// non-empty slug.
func TestSlugify_Idempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("slugify idempotence", prop.ForAll(
		func(s string) bool {
			once := Slugify(s)
			if once == "" {
				return true
			}
			return Slugify(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
