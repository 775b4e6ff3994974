package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "status", "load", "link", "overlay", "exposure", "calculate", "narrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "brrs", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestLoadCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range loadCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"municipalities", "barangays", "demographics", "air-quality", "hazard-matrix", "cyclones", "climate"} {
		assert.True(t, names[name], "expected load subcommand %q not found", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestNarrateCommand_Flags(t *testing.T) {
	flag := narrateCmd.Flags().Lookup("risk-level")
	require.NotNil(t, flag)
	assert.Equal(t, "High", flag.DefValue)

	flag = narrateCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "10", flag.DefValue)
}

func TestBoundaryCommands_Flags(t *testing.T) {
	for _, c := range []string{"province", "region", "projected"} {
		assert.NotNil(t, loadBarangaysCmd.Flags().Lookup(c), c)
		assert.NotNil(t, loadMunicipalitiesCmd.Flags().Lookup(c), c)
	}
	assert.NotNil(t, loadBarangaysCmd.Flags().Lookup("coastal"))
	assert.Nil(t, loadMunicipalitiesCmd.Flags().Lookup("coastal"))
}
