package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"teamgate/internal/validator"
)

func TestValidateClock(t *testing.T) {
	v := validator.New()

	type payload struct {
		Start string `validate:"required,clock_hhmm"`
	}

	valid := []string{"00:00", "09:00", "13:37", "23:59"}
	for _, tc := range valid {
		assert.NoError(t, v.Validate(payload{Start: tc}), tc)
	}

	invalid := []string{"24:00", "9:00", "09:60", "0900", "09-00", "morning"}
	for _, tc := range invalid {
		assert.Error(t, v.Validate(payload{Start: tc}), tc)
	}
}

func TestValidateEmailTag(t *testing.T) {
	v := validator.New()

	type payload struct {
		Email string `validate:"required,email"`
	}

	assert.NoError(t, v.Validate(payload{Email: "user@example.com"}))
	assert.Error(t, v.Validate(payload{Email: "not-an-email"}))
	assert.Error(t, v.Validate(payload{}))
}
