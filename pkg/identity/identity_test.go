package identity

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/authn"
)

func TestFromClaims(t *testing.T) {
	key := uuid.New()
	iat := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	claims := &authn.Claims{
		Email:   "alice@example.com",
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key.String(),
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(time.Hour)),
		},
	}

	id, err := FromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, key, id.UserKey)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.True(t, id.IsAdmin)
	assert.Equal(t, iat, id.IssuedAt)
	assert.Equal(t, iat.Add(time.Hour), id.ExpiresAt)
	assert.Equal(t, "", id.ClientIP())
}

func TestFromClaims_InvalidSubject(t *testing.T) {
	claims := &authn.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}}

	_, err := FromClaims(claims)
	assert.Error(t, err)
}

func TestIdentity_WithRemoteIP(t *testing.T) {
	id := &Identity{UserKey: uuid.New()}

	result := id.WithRemoteIP(net.ParseIP("192.168.1.1"))
	assert.Same(t, id, result)
	assert.Equal(t, "192.168.1.1", id.ClientIP())
}

func TestContext(t *testing.T) {
	ctx := context.Background()

	_, ok := Get(ctx)
	assert.False(t, ok)

	id := &Identity{UserKey: uuid.New(), Email: "bob@example.com"}
	ctx = Set(ctx, id)

	got, ok := Get(ctx)
	require.True(t, ok)
	assert.Same(t, id, got)
}
