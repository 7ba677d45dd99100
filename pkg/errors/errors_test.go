package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_UnwrapsToMalformedInput(t *testing.T) {
	err := Wrap(NewValidationError("url_length", "required"), "strict validation")

	assert.True(t, Is(err, ErrMalformedInput))
	assert.Contains(t, err.Error(), "url_length")

	var vErr *ValidationError
	assert.True(t, As(err, &vErr))
	assert.Equal(t, "url_length", vErr.Field)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.Nil(t, m.ToError())

	m.Add(nil)
	assert.False(t, m.HasErrors())

	m.Add(NewValidationError("a", "required"))
	m.Add(NewValidationError("b", "unknown field"))

	err := m.ToError()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors")
	assert.True(t, Is(err, ErrMalformedInput))
}

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.True(t, Is(Wrapf(ErrModelUnavailable, "load %s", "x"), ErrModelUnavailable))
}
