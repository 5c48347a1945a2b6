package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "v1.2.0"
	v, _, _ := Info()
	assert.Equal(t, "v1.2.0", v)
	assert.Contains(t, String(), "v1.2.0 (commit ")
}
