package loyalty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQRPayload_EarnFormat(t *testing.T) {
	data := `{"type":"user","userId":"u-1","email":"kahve@example.com","timestamp":1700000000000}`

	p, err := ParseQRPayload(data)
	require.NoError(t, err)

	assert.Equal(t, QRTypeUser, p.Type)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "kahve@example.com", p.Email)
	assert.Equal(t, int64(1700000000000), p.Timestamp)
}

func TestParseQRPayload_RedeemFormat(t *testing.T) {
	data := `{"type":"redeem","userId":"u-1","brandId":"b-1","timestamp":1700000000000}`

	p, err := ParseQRPayload(data)
	require.NoError(t, err)

	assert.Equal(t, QRTypeRedeem, p.Type)
	assert.Equal(t, "b-1", p.BrandID)
}

func TestParseQRPayload_RejectsGarbage(t *testing.T) {
	_, err := ParseQRPayload("not json at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid QR code format")
}

func TestExpired_BoundaryIsFiveMinutes(t *testing.T) {
	now := time.Now()

	fresh := &QRPayload{Timestamp: now.Add(-QRFreshness).UnixMilli()}
	assert.False(t, fresh.Expired(now), "exactly at the window must still pass")

	stale := &QRPayload{Timestamp: now.Add(-QRFreshness - time.Second).UnixMilli()}
	assert.True(t, stale.Expired(now))

	future := &QRPayload{Timestamp: now.Add(time.Minute).UnixMilli()}
	assert.False(t, future.Expired(now))
}
