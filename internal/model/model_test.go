package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teamgate/internal/model"
)

func TestTeamTokenHealth(t *testing.T) {
	tests := []struct {
		failures int
		expected model.TokenHealth
	}{
		{0, model.TokenHealthValid},
		{1, model.TokenHealthDegraded},
		{2, model.TokenHealthDegraded},
		{3, model.TokenHealthExpired},
		{10, model.TokenHealthExpired},
	}

	for _, tt := range tests {
		team := model.Team{AuthFailures: tt.failures}
		assert.Equal(t, tt.expected, team.TokenHealth(), "failures=%d", tt.failures)
	}
}
