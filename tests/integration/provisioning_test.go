package integration

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marchFitnessAPI/handlers"
	"marchFitnessAPI/internal/user"
	"marchFitnessAPI/services"
	"marchFitnessAPI/tests/helpers"
)

// TestClerkProvisioningFlow walks a user through webhook provisioning,
// profile fetch and deletion.
func TestClerkProvisioningFlow(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rolePolicy, err := user.ParseRolePolicy("")
	require.NoError(t, err)
	userService := services.NewUserService(pool, rolePolicy)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_test_" + time.Now().Format("20060102150405")

	createPayload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(createPayload))
	rr := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "Webhook should succeed")

	ctx := context.Background()
	created, err := userService.GetUserByClerkID(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, "test.user@example.com", created.Email)
	assert.Equal(t, user.RoleMember, created.Role, "empty policy defaults everyone to member")
	assert.True(t, created.EmailVerified)

	deletePayload := helpers.MockClerkWebhookPayload("user.deleted", clerkID)
	req2 := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(deletePayload))
	rr2 := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr2, req2)
	assert.Equal(t, http.StatusOK, rr2.Code)

	_, err = userService.GetUserByClerkID(ctx, clerkID)
	assert.Error(t, err, "deleted user must be gone")
}

// TestAdminRolePolicyAssignsAdmin provisions a user matched by the policy.
func TestAdminRolePolicyAssignsAdmin(t *testing.T) {
	pool := helpers.SetupTestDB(t)
	defer helpers.CleanupTestDB(t, pool)

	rolePolicy, err := user.ParseRolePolicy(`{"rules":[{"email":"test.user@example.com","role":"admin"}]}`)
	require.NoError(t, err)
	userService := services.NewUserService(pool, rolePolicy)
	webhookHandler := handlers.NewWebhookHandler(userService)

	os.Setenv("CLERK_WEBHOOK_SECRET", "")
	defer os.Unsetenv("CLERK_WEBHOOK_SECRET")

	clerkID := "user_admin_" + time.Now().Format("20060102150405")

	payload := helpers.MockClerkWebhookPayload("user.created", clerkID)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(payload))
	rr := httptest.NewRecorder()

	webhookHandler.HandleClerkWebhook(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	created, err := userService.GetUserByClerkID(context.Background(), clerkID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, created.Role)

	admin, err := userService.IsAdmin(context.Background(), clerkID)
	require.NoError(t, err)
	assert.True(t, admin)
}
