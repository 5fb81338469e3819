package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCommand executes the CLI with args, returning stdout and the
// execution error.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const basicRules = `
rules:
  - kind: ip-literal
    pattern: host.test
    addresses: "192.0.2.1"
  - kind: fail
    pattern: down.test
`

func TestResolveCommandSuccess(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)

	out, err := runCommand(t, "resolve", "host.test", "--rules", rulesPath, "--format", "json")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "resolve_success", []byte(out))
}

func TestResolveCommandSuccessText(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)

	out, err := runCommand(t, "resolve", "host.test", "--rules", rulesPath)
	require.NoError(t, err)
	assert.Equal(t, "host.test: [192.0.2.1] (aliases: [host.test])\n", out)
}

func TestResolveCommandFailure(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)

	out, err := runCommand(t, "resolve", "down.test", "--rules", rulesPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, "NAME_NOT_RESOLVED", data["code"])
	assert.Nil(t, data["addresses"])
}

func TestResolveCommandCatchAll(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)

	out, err := runCommand(t, "resolve", "anything.else", "--rules", rulesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "127.0.0.1")
}

func TestResolveCommandBadRuleFile(t *testing.T) {
	rulesPath := writeRuleFile(t, "rules:\n  - kind: reflect\n    pattern: x\n")

	_, err := runCommand(t, "resolve", "host.test", "--rules", rulesPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolveCommandBadFlags(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)

	_, err := runCommand(t, "resolve", "host.test", "--rules", rulesPath, "--qtype", "mx")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCommand(t, "resolve", "host.test", "--rules", rulesPath, "--source", "psychic")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCommand(t, "resolve", "host.test", "--rules", rulesPath, "--format", "xml")
	require.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	good := writeRuleFile(t, basicRules)
	out, err := runCommand(t, "validate", good, "--format", "json")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(2), data["rules"])

	bad := writeRuleFile(t, "rules:\n  - kind: fail\n")
	_, err = runCommand(t, "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestTraceCommand(t *testing.T) {
	rulesPath := writeRuleFile(t, basicRules)
	journalPath := filepath.Join(t.TempDir(), "journal.db")

	_, err := runCommand(t, "resolve", "host.test", "--rules", rulesPath, "--journal", journalPath)
	require.NoError(t, err)
	_, err = runCommand(t, "resolve", "down.test", "--rules", rulesPath, "--journal", journalPath)
	require.Error(t, err) // resolution failed, but the event was recorded

	out, err := runCommand(t, "trace", journalPath)
	require.NoError(t, err)
	assert.Contains(t, out, "host.test")
	assert.Contains(t, out, "down.test")
	assert.Contains(t, out, "NAME_NOT_RESOLVED")

	sessions, err := runCommand(t, "trace", journalPath, "--sessions")
	require.NoError(t, err)
	assert.NotEmpty(t, sessions)
}

func TestTraceCommandEmptyJournal(t *testing.T) {
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	out, err := runCommand(t, "trace", journalPath)
	require.NoError(t, err)
	assert.Equal(t, "no events\n", out)
}
