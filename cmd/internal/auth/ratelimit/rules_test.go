package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	require.NoError(t, rules.Validate())

	assert.Equal(t, 10, rules[EndpointLogin].Limit)
	assert.Equal(t, FailClosed, rules[EndpointLogin].OnFail)
	assert.Equal(t, 30, rules[EndpointRefresh].Limit)
	assert.Equal(t, FailOpen, rules[EndpointRefresh].OnFail)
	assert.Equal(t, 20, rules[EndpointLogout].Limit)
	assert.Equal(t, FailOpen, rules[EndpointLogout].OnFail)
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
login:
  limit: 5
  window: 30s
refresh:
  on_fail: closed
`), 0o600))

	rules, err := LoadRulesFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5, rules[EndpointLogin].Limit)
	assert.Equal(t, 30*time.Second, rules[EndpointLogin].Window)
	assert.Equal(t, FailClosed, rules[EndpointLogin].OnFail)
	assert.Equal(t, FailClosed, rules[EndpointRefresh].OnFail)
	assert.Equal(t, 30, rules[EndpointRefresh].Limit)
	assert.Equal(t, 20, rules[EndpointLogout].Limit)
}

func TestLoadRulesFile_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("login:\n  window: soon\n"), 0o600))
	_, err := LoadRulesFile(bad)
	assert.Error(t, err)

	policy := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte("login:\n  on_fail: maybe\n"), 0o600))
	_, err = LoadRulesFile(policy)
	assert.ErrorIs(t, err, ErrInvalidRule)

	_, err = LoadRulesFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestRules_ApplyEnv(t *testing.T) {
	t.Setenv("SESSIOND_RATELIMIT_LOGIN", "3/10s")
	t.Setenv("SESSIOND_RATELIMIT_LOGOUT", "")

	rules := DefaultRules()
	require.NoError(t, rules.ApplyEnv())
	assert.Equal(t, 3, rules[EndpointLogin].Limit)
	assert.Equal(t, 10*time.Second, rules[EndpointLogin].Window)
	assert.Equal(t, 20, rules[EndpointLogout].Limit)

	t.Setenv("SESSIOND_RATELIMIT_REFRESH", "lots")
	assert.Error(t, DefaultRules().ApplyEnv())
}
