package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "dbforge", cmd.Use)
	assert.Contains(t, cmd.Long, "without id collisions")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"merge"},
		{"generate"},
		{"registry"},
		{"registry", "show"},
		{"registry", "reserve"},
		{"history"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestMergeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	mergeCmd, _, err := cmd.Find([]string{"merge"})
	require.NoError(t, err)

	defaults := map[string]string{
		"target":                "",
		"dedupe":                "none",
		"auto-remap-collisions": "on",
		"remap-db-random-id":    "off",
		"create-target":         "false",
		"backup":                "false",
		"dry-run":               "false",
		"skip-self":             "false",
		"manifest":              "",
		"ledger":                "",
	}
	for name, def := range defaults {
		flag := mergeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	for _, name := range []string{"source", "glob", "source-list"} {
		flag := mergeCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "stringArray", flag.Value.Type(), name)
	}
}

func TestGenerateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	genCmd, _, err := cmd.Find([]string{"generate"})
	require.NoError(t, err)

	defaults := map[string]string{
		"count":             "1",
		"start-index":       "0",
		"id_registry_mode":  "auto",
		"id_namespace_salt": "",
	}
	for name, def := range defaults {
		flag := genCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, def, flag.DefValue, name)
	}

	pathFlag := genCmd.Flags().Lookup("id_registry_path")
	require.NotNil(t, pathFlag)
	assert.Contains(t, pathFlag.DefValue, "registry.json")
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "registry", "show", "--id_registry_path", t.TempDir() + "/r.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
