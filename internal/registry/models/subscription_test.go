package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "subvault/pkg/domain"
	dErrors "subvault/pkg/domain-errors"
)

func TestNewSubscription_DurationBounds(t *testing.T) {
	accountID := id.NewAccountID()
	now := time.Now()

	tests := []struct {
		name       string
		durationMs int64
		wantCode   dErrors.Code
	}{
		{name: "one millisecond minimum", durationMs: 1},
		{name: "one year maximum", durationMs: 31_536_000_000},
		{name: "zero duration rejected", durationMs: 0, wantCode: dErrors.CodeInvalidDuration},
		{name: "negative duration rejected", durationMs: -5, wantCode: dErrors.CodeInvalidDuration},
		{name: "over one year rejected", durationMs: 31_536_000_001, wantCode: dErrors.CodeInvalidDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := NewSubscription(accountID, "premium", "monthly feed", 100, tt.durationMs, []byte("hello"), now)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, tt.wantCode))
				assert.Nil(t, sub)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.durationMs, sub.DurationMs)
			assert.Equal(t, time.Duration(tt.durationMs)*time.Millisecond, sub.Duration())
		})
	}
}

func TestNewSubscription_NameValidation(t *testing.T) {
	now := time.Now()

	_, err := NewSubscription(id.NewAccountID(), "", "desc", 10, 1000, nil, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = NewSubscription(id.NewAccountID(), strings.Repeat("x", 129), "desc", 10, 1000, nil, now)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewSubscription_CopiesContent(t *testing.T) {
	content := []byte("original")
	sub, err := NewSubscription(id.NewAccountID(), "feed", "", 0, 1000, content, time.Now())
	require.NoError(t, err)

	content[0] = 'X'
	assert.Equal(t, []byte("original"), sub.Content)
}

func TestAccessGrant_ExpiredAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sub, err := NewSubscription(id.NewAccountID(), "feed", "", 0, 60_000, nil, now)
	require.NoError(t, err)

	grant := NewAccessGrant("subscriber-1", sub, now)

	assert.False(t, grant.ExpiredAt(now), "fresh grant is valid")
	assert.False(t, grant.ExpiredAt(now.Add(59*time.Second)), "valid just before expiry")
	assert.True(t, grant.ExpiredAt(now.Add(60*time.Second)), "expired at exactly the boundary")
	assert.True(t, grant.ExpiredAt(now.Add(time.Hour)))
}

func TestPayment_Covers(t *testing.T) {
	p := Payment{Amount: 100}

	assert.True(t, p.Covers(100))
	assert.False(t, p.Covers(99), "underpayment rejected")
	assert.False(t, p.Covers(101), "overpayment rejected, no change-making")
}
