package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCLIRegistersCommands(t *testing.T) {
	InitCLI()

	names := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"sync", "report", "init-db", "token", "serve", "version"} {
		assert.True(t, names[want], "command %q should be registered", want)
	}
}

func TestInitCLIIsIdempotent(t *testing.T) {
	InitCLI()
	before := len(RootCmd.Commands())
	InitCLI()
	assert.Equal(t, before, len(RootCmd.Commands()))
}

func TestParseSince(t *testing.T) {
	date, err := parseSince("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), date)

	unix, err := parseSince("1709280000")
	require.NoError(t, err)
	assert.Equal(t, int64(1709280000), unix.Unix())

	_, err = parseSince("yesterday")
	require.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
