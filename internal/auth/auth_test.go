package auth

import (
	"context"
	"testing"
	"time"

	"servizephyr/internal/model"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestVerifier_Verify(t *testing.T) {
	owner := model.Identity{UserID: "u1", TenantID: "tenant-1", Role: model.RoleOwner, Name: "Asha"}

	valid, err := IssueToken(testSecret, owner, time.Hour)
	require.NoError(t, err)

	expired, err := IssueToken(testSecret, owner, -time.Minute)
	require.NoError(t, err)

	otherSecret, err := IssueToken("other-secret", owner, time.Hour)
	require.NoError(t, err)

	badRole, err := IssueToken(testSecret, model.Identity{UserID: "u1", Role: "superuser"}, time.Hour)
	require.NoError(t, err)

	noSubject, err := IssueToken(testSecret, model.Identity{Role: model.RoleRider}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role:           string(model.RoleAdmin),
		StandardClaims: jwt.StandardClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expected    model.Identity
		expectedErr error
	}{
		{name: "Valid token", token: valid, expected: owner},
		{name: "Empty token", token: "", expectedErr: ErrMissingToken},
		{name: "Garbage", token: "not-a-jwt", expectedErr: ErrInvalidToken},
		{name: "Expired", token: expired, expectedErr: ErrInvalidToken},
		{name: "Wrong secret", token: otherSecret, expectedErr: ErrInvalidToken},
		{name: "Unknown role", token: badRole, expectedErr: ErrInvalidToken},
		{name: "Missing subject", token: noSubject, expectedErr: ErrInvalidToken},
		{name: "Unsigned token", token: none, expectedErr: ErrInvalidToken},
	}

	v := NewVerifier(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.token)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestVerifier_EmptySecretRejectsEverything(t *testing.T) {
	forged, err := IssueToken("", model.Identity{UserID: "mallory", Role: model.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	id, err := NewVerifier("").Verify(forged)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, model.Identity{}, id)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	id := model.Identity{UserID: "r1", Role: model.RoleRider}
	got, ok := IdentityFrom(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, id, got)
}
