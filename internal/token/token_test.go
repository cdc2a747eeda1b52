package token

import (
	"testing"
	"time"

	"electricity-billing/internal/clock"
	"electricity-billing/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	issuer := NewIssuer("secret", time.Hour, clk)
	userID := uuid.New()

	signed, exp, err := issuer.Issue(userID, model.RoleSuperCreator)
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour), exp)

	p, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, model.RoleSuperCreator, p.Role)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC))
	issuer := NewIssuer("secret", time.Hour, clk)

	signed, _, err := issuer.Issue(uuid.New(), model.RoleCustomer)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	signed, _, err := NewIssuer("one", time.Hour, clk).Issue(uuid.New(), model.RoleAdmin)
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Hour, clk).Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
