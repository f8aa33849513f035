package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetClaims(t *testing.T) {
	t.Run("set and get claims successfully", func(t *testing.T) {
		expected := &ClaimSet{Subject: "user123", Permissions: []string{"read:messages"}}

		ctx := SetClaims(context.Background(), expected)
		claims, err := GetClaims(ctx)

		require.NoError(t, err)
		assert.Same(t, expected, claims)
	})

	t.Run("get claims from empty context returns error", func(t *testing.T) {
		_, err := GetClaims(context.Background())

		assert.ErrorIs(t, err, ErrClaimsNotFound)
	})

	t.Run("a nil claim set counts as missing", func(t *testing.T) {
		ctx := SetClaims(context.Background(), nil)

		_, err := GetClaims(ctx)

		assert.ErrorIs(t, err, ErrClaimsNotFound)
		assert.False(t, HasClaims(ctx))
	})

	t.Run("has claims returns true when claims exist", func(t *testing.T) {
		ctx := SetClaims(context.Background(), &ClaimSet{Subject: "user123"})

		assert.True(t, HasClaims(ctx))
	})

	t.Run("has claims returns false when no claims", func(t *testing.T) {
		assert.False(t, HasClaims(context.Background()))
	})
}
