package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv("GATEPASS_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv("GATEPASS_TEST_MODE", "")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv("GATEPASS_TEST_MODE", "true")
	RefreshTestMode()
	assert.False(t, InTestMode(), "only the literal 1 enables test mode")
}
