package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds(t *testing.T) {
	errPatientNotFound := NotFound("patient")
	assert.Equal(t, "patient not found", errPatientNotFound.Error())
	assert.ErrorIs(t, fmt.Errorf("get: %w", errPatientNotFound), ErrNotFound)

	errDup := Conflict("email already in use")
	assert.ErrorIs(t, errDup, ErrConflict)
	assert.False(t, errors.Is(errDup, ErrNotFound))

	v := Invalid("date_of_birth", "must not be in the future")
	assert.ErrorIs(t, v, ErrInvalid)
	assert.Equal(t, "date_of_birth: must not be in the future", v.Error())

	var ve *ValidationError
	assert.True(t, errors.As(fmt.Errorf("create: %w", v), &ve))
	assert.Equal(t, "date_of_birth", ve.Field)
}
