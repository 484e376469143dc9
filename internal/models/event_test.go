package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceTimezone(t *testing.T) {
	assert.Equal(t, "Africa/Tunis", CoerceTimezone("Africa/Tunis"))
	assert.Equal(t, "UTC", CoerceTimezone("UTC"))

	// Неизвестные и пустые значения приводятся к дефолту
	assert.Equal(t, DefaultTimezone, CoerceTimezone("Mars/Olympus"))
	assert.Equal(t, DefaultTimezone, CoerceTimezone(""))
	assert.Equal(t, DefaultTimezone, CoerceTimezone("africa/tunis"))
}

func TestSessionStatusIsTerminal(t *testing.T) {
	assert.False(t, SessionStatusProcessing.IsTerminal())
	assert.True(t, SessionStatusCompleted.IsTerminal())
	assert.True(t, SessionStatusFailed.IsTerminal())
}
