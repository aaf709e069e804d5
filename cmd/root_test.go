package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vargulf/hvseed/internal/config"
	"github.com/vargulf/hvseed/utils"
)

// The archiver is absent and Hyper-V is unlikely to be reachable, so the
// run fails early; the transcript must still have been created next to the
// scratch directory and released through the deferred close.
func TestRunProvisionCreatesTranscriptOnEarlyFailure(t *testing.T) {
	utils.InitLogger(false)
	t.Cleanup(func() { utils.InitLogger(false) })

	base := t.TempDir()
	settings := config.Default()
	settings.TempDir = filepath.Join(base, "work")
	settings.ArchiverPath = filepath.Join(base, "missing-7z")

	err := runProvision(settings)
	require.Error(t, err)

	matches, globErr := filepath.Glob(filepath.Join(base, "hvseed-*.log"))
	require.NoError(t, globErr)
	require.Len(t, matches, 1)
	info, statErr := os.Stat(matches[0])
	require.NoError(t, statErr)
	assert.False(t, info.IsDir())
}
