package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerTokenRoundTrip(t *testing.T) {
	token, err := GenerateCustomerToken("user-1")
	require.NoError(t, err)

	id, err := VerifyCustomerToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)
}

func TestBusinessTokenRoundTrip(t *testing.T) {
	token, err := GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	id, err := VerifyBusinessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", id)
}

func TestTokenNamespacesAreDisjoint(t *testing.T) {
	customerToken, err := GenerateCustomerToken("user-1")
	require.NoError(t, err)
	businessToken, err := GenerateBusinessToken("staff-1")
	require.NoError(t, err)

	_, err = VerifyBusinessToken(customerToken)
	assert.Error(t, err, "a customer token must never authenticate the business side")

	_, err = VerifyCustomerToken(businessToken)
	assert.Error(t, err, "a business token must never authenticate the customer side")
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := VerifyCustomerToken("not-a-jwt")
	assert.Error(t, err)

	_, err = VerifyBusinessToken("")
	assert.Error(t, err)
}
