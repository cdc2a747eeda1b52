package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindsUnwrapToSentinels(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{NotFound("invoice %s not found", "x"), ErrNotFound},
		{Conflict("dup"), ErrConflict},
		{BadRequest("bad"), ErrBadRequest},
		{Unauthorized("nope"), ErrUnauthorized},
		{Unauthenticated("who"), ErrUnauthenticated},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, tc.err, tc.kind)
		assert.True(t, IsClientError(tc.err))
	}
	assert.Equal(t, "invoice x not found", cases[0].err.Error())
}

func TestFromTranslatesGormErrors(t *testing.T) {
	err := From(fmt.Errorf("query: %w", gorm.ErrRecordNotFound), "provider")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "provider not found", err.Error())

	err = From(gorm.ErrDuplicatedKey, "user")
	assert.ErrorIs(t, err, ErrConflict)

	keep := BadRequest("already classified")
	assert.Same(t, keep, From(keep, "anything"))

	raw := errors.New("connection reset")
	wrapped := From(raw, "invoice")
	assert.ErrorIs(t, wrapped, raw)
	assert.False(t, IsClientError(wrapped))
	assert.NoError(t, From(nil, "x"))
}
