package action_test

import (
	"testing"

	"github.com/kiranshivaraju/rescuedesk/internal/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftMessage_Deterministic(t *testing.T) {
	s1, b1, err := action.DraftMessage("Ada", "Full refund issued", "")
	require.NoError(t, err)
	s2, b2, err := action.DraftMessage("Ada", "Full refund issued", "")
	require.NoError(t, err)

	assert.Equal(t, s1, s2)
	assert.Equal(t, b1, b2)
	assert.Contains(t, b1, "Dear Ada,")
	assert.Contains(t, b1, "Full refund issued.")
	assert.NotContains(t, b1, "coupon code")
}

func TestDraftMessage_GenericHonorific(t *testing.T) {
	_, body, err := action.DraftMessage("  ", "Replacement on its way.", "")
	require.NoError(t, err)
	assert.Contains(t, body, "Dear "+action.GenericHonorific+",")
	assert.Contains(t, body, "Replacement on its way.\n")
	assert.NotContains(t, body, "way..")
}

func TestDraftMessage_CouponCode(t *testing.T) {
	_, body, err := action.DraftMessage("", "Goodwill coupon", "WELCOME60")
	require.NoError(t, err)
	assert.Contains(t, body, "Your coupon code is WELCOME60.")
}
