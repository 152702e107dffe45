package version_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/code996/pkg/version"
)

func TestInitBinaryVersion(t *testing.T) {
	t.Parallel()

	version.InitBinaryVersion()

	assert.NotEmpty(t, version.Version)
	assert.NotEmpty(t, version.Commit)
	assert.NotEmpty(t, version.Date)
	assert.True(t, strings.HasPrefix(version.String(), version.Version+" (commit: "))
}
