package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResult_Actor(t *testing.T) {
	t.Run("authenticated user", func(t *testing.T) {
		result := &Result{
			IsAuthenticated: true,
			User: &User{
				ID:    "u-1",
				Email: "admin@example.com",
				Name:  "Admin",
				Role:  "admin",
			},
		}

		actor := result.Actor()
		assert.Equal(t, "u-1", actor.ID)
		assert.Equal(t, "admin@example.com", actor.Email)
	})

	t.Run("nil result falls back to system", func(t *testing.T) {
		var result *Result
		assert.Equal(t, SystemUser, result.Actor())
	})

	t.Run("unauthenticated falls back to system", func(t *testing.T) {
		result := &Result{IsAuthenticated: false}
		assert.Equal(t, SystemUser, result.Actor())
	})

	t.Run("authenticated without user falls back to system", func(t *testing.T) {
		result := &Result{IsAuthenticated: true}
		assert.Equal(t, SystemUser, result.Actor())
	})
}

func TestResult_SessionID(t *testing.T) {
	result := &Result{
		IsAuthenticated: true,
		Session: &Session{
			ID:        "sess-42",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	assert.Equal(t, "sess-42", result.SessionID())

	var nilResult *Result
	assert.Empty(t, nilResult.SessionID())
	assert.Empty(t, (&Result{}).SessionID())
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	result := &Result{IsAuthenticated: true, User: &User{ID: "u-9"}}
	ctx = WithResult(ctx, result)
	assert.Same(t, result, FromContext(ctx))
}
