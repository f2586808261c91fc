package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTable(t *testing.T) {
	assert.True(t, CanTransition(StatusPendingModeration, StatusActive))
	assert.True(t, CanTransition(StatusActive, StatusExpired))
	assert.True(t, CanTransition(StatusExpired, StatusArchived))

	// No edge ever re-activates a terminal post.
	for _, terminal := range TerminalStatuses() {
		assert.False(t, CanTransition(terminal, StatusActive), string(terminal))
	}
	assert.False(t, CanTransition(StatusArchived, StatusActive))
	assert.False(t, CanTransition(StatusActive, StatusActive))
}
