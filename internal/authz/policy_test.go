package authz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinPolicyLevels(t *testing.T) {
	policy := BuiltinPolicy()

	assert.Equal(t, LevelDelete, policy.LevelFor("Admin", "delete"))
	assert.Equal(t, LevelCreate, policy.LevelFor("Manager", "create"))
	assert.Equal(t, LevelUpdate, policy.LevelFor("Collaborator", "update"))
	assert.Equal(t, LevelRead, policy.LevelFor("Reader", "list"))
	assert.Equal(t, LevelNone, policy.LevelFor("Guest", "list"))

	// Checker is locked down except for the gate operations.
	assert.Equal(t, LevelRead, policy.LevelFor("Checker", "get"))
	assert.Equal(t, LevelRead, policy.LevelFor("Checker", "list"))
	assert.Equal(t, LevelUpdate, policy.LevelFor("Checker", "scan_exit"))
	assert.Equal(t, LevelUpdate, policy.LevelFor("Checker", "scan-entry"))
	assert.Equal(t, LevelNone, policy.LevelFor("Checker", "delete"))

	assert.Equal(t, LevelNone, policy.LevelFor("Unknown", "list"))
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	payload := `{
		"roles": {
			"Admin": {"default": 4},
			"Auditor": {"default": 1, "actions": {"export": 2}}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	policy, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, LevelDelete, policy.LevelFor("Admin", "list"))
	assert.Equal(t, LevelRead, policy.LevelFor("Auditor", "list"))
	assert.Equal(t, LevelUpdate, policy.LevelFor("Auditor", "export"))
}

func TestLoadPolicyRejectsBadLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"roles": {"Admin": {"default": 9}}}`), 0o600))

	_, err := LoadPolicy(path)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLoadPolicyMissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
