package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consolehq/actionlog/pkg/auth"
)

func adminAuth() *auth.Result {
	return &auth.Result{
		IsAuthenticated: true,
		User: &auth.User{
			ID:    "u-1",
			Email: "admin@example.com",
			Name:  "Admin",
			Role:  "admin",
		},
		Session: &auth.Session{ID: "sess-1", ExpiresAt: time.Now().Add(time.Hour)},
	}
}

func TestInferAction(t *testing.T) {
	assert.Equal(t, ActionCreate, InferAction("POST"))
	assert.Equal(t, ActionUpdate, InferAction("PUT"))
	assert.Equal(t, ActionUpdate, InferAction("PATCH"))
	assert.Equal(t, ActionDelete, InferAction("DELETE"))
	assert.Equal(t, ActionUpdate, InferAction("OPTIONS"))
	assert.Equal(t, ActionCreate, InferAction("post"))
}

func TestInferResource(t *testing.T) {
	tests := []struct {
		path string
		want ResourceType
	}{
		{"/api/users/42", ResourceUser},
		{"/api/profile", ResourceProfile},
		{"/api/settings/theme", ResourceSettings},
		{"/api/roles/3", ResourceRole},
		{"/api/auth/login", ResourceAuth},
		{"/api/security/tokens", ResourceSecurity},
		{"/api/unknown", ResourceSystem},
		{"", ResourceSystem},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferResource(tt.path), "path %q", tt.path)
	}
}

func TestBuilder_Build_Inference(t *testing.T) {
	b := NewBuilder()

	entry := b.Build(Input{
		Auth:       adminAuth(),
		Method:     "post",
		Path:       "/api/users",
		Payload:    map[string]interface{}{"email": "new@example.com", "name": "New User"},
		StatusCode: 201,
		Success:    true,
	})

	assert.Equal(t, ActionCreate, entry.ActionType)
	assert.Equal(t, ResourceUser, entry.ResourceType)
	assert.Equal(t, "POST", entry.HTTPMethod)
	assert.Equal(t, "New User", entry.ResourceName)
	assert.Equal(t, RiskLow, entry.RiskLevel)
	assert.Equal(t, "u-1", entry.UserID)
	assert.Equal(t, "sess-1", entry.SessionID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Equal(t, []string{"audit_trail", "blame_tracking", "enterprise_logging"}, entry.ComplianceFlags)
}

func TestBuilder_Build_SystemFallback(t *testing.T) {
	b := NewBuilder()

	entry := b.Build(Input{Method: "DELETE", Path: "/api/settings/5"})

	assert.Equal(t, "system", entry.UserID)
	assert.Equal(t, "System", entry.UserName)
	assert.Empty(t, entry.SessionID)
}

func TestBuilder_Build_ResourceID(t *testing.T) {
	b := NewBuilder()

	t.Run("override wins", func(t *testing.T) {
		entry := b.Build(Input{
			Method:    "DELETE",
			Path:      "/api/users/42",
			Overrides: Overrides{ResourceID: "override-id"},
		})
		assert.Equal(t, "override-id", entry.ResourceID)
	})

	t.Run("uuid path segment", func(t *testing.T) {
		entry := b.Build(Input{
			Method: "DELETE",
			Path:   "/api/users/6e9a2c43-5d91-4f6e-8d2a-92b1c7a01c55",
		})
		assert.Equal(t, "6e9a2c43-5d91-4f6e-8d2a-92b1c7a01c55", entry.ResourceID)
	})

	t.Run("numeric path segment", func(t *testing.T) {
		entry := b.Build(Input{Method: "DELETE", Path: "/api/users/42"})
		assert.Equal(t, "42", entry.ResourceID)
	})

	t.Run("payload fallback", func(t *testing.T) {
		entry := b.Build(Input{
			Method:  "PUT",
			Path:    "/api/users",
			Payload: map[string]interface{}{"userId": "u-77"},
		})
		assert.Equal(t, "u-77", entry.ResourceID)
	})

	t.Run("numeric payload id", func(t *testing.T) {
		entry := b.Build(Input{
			Method:  "PUT",
			Path:    "/api/users",
			Payload: map[string]interface{}{"id": float64(99)},
		})
		assert.Equal(t, "99", entry.ResourceID)
	})
}

func TestBuilder_Build_ChangesSummary(t *testing.T) {
	b := NewBuilder()

	t.Run("sensitive fields with prior values", func(t *testing.T) {
		entry := b.Build(Input{
			Auth:   adminAuth(),
			Method: "PUT",
			Path:   "/api/users/42",
			Payload: map[string]interface{}{
				"email":  "after@example.com",
				"role":   "admin",
				"avatar": "ignored.png",
			},
			PriorValues: map[string]interface{}{"email": "before@example.com"},
		})

		require.NotNil(t, entry.ChangesSummary)
		assert.Equal(t, "after@example.com", entry.ChangesSummary["email"].To)
		assert.Equal(t, "before@example.com", entry.ChangesSummary["email"].From)
		assert.Equal(t, "admin", entry.ChangesSummary["role"].To)
		assert.Nil(t, entry.ChangesSummary["role"].From)
		assert.NotContains(t, entry.ChangesSummary, "avatar")
	})

	t.Run("bulk operation drives affected count and risk", func(t *testing.T) {
		ids := make([]interface{}, 15)
		for i := range ids {
			ids[i] = i
		}
		entry := b.Build(Input{
			Auth:      adminAuth(),
			Method:    "POST",
			Path:      "/api/users/bulk-delete",
			Payload:   map[string]interface{}{"ids": ids},
			Overrides: Overrides{ActionType: ActionBulkDelete},
		})

		require.NotNil(t, entry.ChangesSummary)
		bulk := entry.ChangesSummary["bulkOperation"]
		assert.Equal(t, "BULK_DELETE", bulk.Type)
		assert.Equal(t, 15, bulk.Count)
		assert.Equal(t, 15, entry.AffectedUsersCount)
		assert.Equal(t, RiskCritical, entry.RiskLevel)
	})

	t.Run("no sensitive fields yields nil summary", func(t *testing.T) {
		entry := b.Build(Input{
			Method:  "POST",
			Path:    "/api/users",
			Payload: map[string]interface{}{"avatar": "x.png"},
		})
		assert.Nil(t, entry.ChangesSummary)
	})
}

func TestBuilder_Build_RiskOverride(t *testing.T) {
	b := NewBuilder()

	entry := b.Build(Input{
		Method:    "POST",
		Path:      "/api/users",
		Overrides: Overrides{RiskLevel: RiskCritical},
	})
	assert.Equal(t, RiskCritical, entry.RiskLevel)
}

func TestBuilder_Build_ResourceNameFromResponse(t *testing.T) {
	b := NewBuilder()

	entry := b.Build(Input{
		Method:   "POST",
		Path:     "/api/users",
		Response: map[string]interface{}{"email": "created@example.com"},
	})
	assert.Equal(t, "created@example.com", entry.ResourceName)
}
