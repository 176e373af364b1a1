package decision

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalID(t *testing.T) {
	t.Run("Stable", func(t *testing.T) {
		assert.Equal(t, PrincipalID("c-123"), PrincipalID("c-123"))
	})
	t.Run("DistinctPerClient", func(t *testing.T) {
		assert.NotEqual(t, PrincipalID("c-123"), PrincipalID("c-124"))
	})
	t.Run("NotTheRawClientID", func(t *testing.T) {
		assert.NotEqual(t, "c-123", PrincipalID("c-123"))
	})
}

func TestAllow(t *testing.T) {
	d := Allow("c-123", "tenant-A", "key-abc")
	assert.Equal(t, EffectAllow, d.Effect)
	assert.True(t, d.Allowed())
	assert.Equal(t, PrincipalID("c-123"), d.PrincipalID)
	assert.Equal(t, "key-abc", d.RateLimitKey)
	require.NotNil(t, d.Context)
	assert.Equal(t, "tenant-A", d.Context.TenantID)
	assert.Empty(t, d.Reason)
}

func TestDeny(t *testing.T) {
	t.Run("WithClient", func(t *testing.T) {
		d := Deny(ReasonUnknownClient, "c-123")
		assert.Equal(t, EffectDeny, d.Effect)
		assert.False(t, d.Allowed())
		assert.Equal(t, ReasonUnknownClient, d.Reason)
		assert.Equal(t, PrincipalID("c-123"), d.PrincipalID)
		assert.Nil(t, d.Context)
		assert.Empty(t, d.RateLimitKey)
	})
	t.Run("WithoutClient", func(t *testing.T) {
		d := Deny(ReasonMalformedToken, "")
		assert.Empty(t, d.PrincipalID)
	})
}

func TestDenial(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Denied(ReasonStoreUnavailable, cause)

	var den *Denial
	require.True(t, errors.As(error(err), &den))
	assert.Equal(t, ReasonStoreUnavailable, den.Reason)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "StoreUnavailable")

	t.Run("NoCause", func(t *testing.T) {
		assert.Equal(t, "UnknownTenant", Denied(ReasonUnknownTenant, nil).Error())
	})
}

func TestSecurityEvent(t *testing.T) {
	assert.True(t, ReasonUnsupportedAlgorithm.SecurityEvent())
	assert.True(t, ReasonUnknownClient.SecurityEvent())
	assert.False(t, ReasonTokenExpired.SecurityEvent())
	assert.False(t, ReasonUnknownTenant.SecurityEvent())
}
