package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionStatus_CanTransitionTo(t *testing.T) {
	all := []ConnectionStatus{StatusPending, StatusAccepted, StatusRejected, StatusRemoved}
	allowed := map[[2]ConnectionStatus]bool{
		{StatusPending, StatusAccepted}: true,
		{StatusPending, StatusRejected}: true,
		{StatusAccepted, StatusRemoved}: true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, allowed[[2]ConnectionStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestDecision(t *testing.T) {
	assert.True(t, DecisionAccept.Valid())
	assert.True(t, DecisionReject.Valid())
	assert.False(t, Decision("maybe").Valid())
	assert.Equal(t, StatusAccepted, DecisionAccept.Target())
	assert.Equal(t, StatusRejected, DecisionReject.Target())
}
