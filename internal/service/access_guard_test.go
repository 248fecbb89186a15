package service_test

import (
	"context"
	"testing"

	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAccessGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	guard := service.NewAccessGuard(repository.NewAssignmentRepository(db), zap.NewNop())

	owner := testutil.CreateTestUser(t, db, "Owner", domain.PermissionViewOwnDeals)
	editor := testutil.CreateTestUser(t, db, "Editor", domain.PermissionEditGlobalDeals)
	stranger := testutil.CreateTestUser(t, db, "Stranger", domain.PermissionViewGlobalLeads)
	deal := testutil.CreateTestDeal(t, db, "Guarded", domain.DealStageDraft)
	testutil.Assign(t, db, domain.EntityDeal, deal.ID, owner.ID)

	userOf := func(u *domain.User) context.Context { return testutil.UserContext(t, db, u) }
	ctx := context.Background()

	t.Run("assigned user may view and edit", func(t *testing.T) {
		user := mustUser(t, userOf(owner))
		assert.NoError(t, guard.AuthorizeView(ctx, domain.EntityDeal, deal.ID, user))
		assert.NoError(t, guard.AuthorizeEdit(ctx, domain.EntityDeal, deal.ID, user))
	})

	t.Run("global edit bypasses assignment", func(t *testing.T) {
		user := mustUser(t, userOf(editor))
		assert.NoError(t, guard.AuthorizeEdit(ctx, domain.EntityDeal, deal.ID, user))
		assert.ErrorIs(t, guard.AuthorizeView(ctx, domain.EntityDeal, deal.ID, user), service.ErrAccessDeniedToEntity)
	})

	t.Run("stranger is denied", func(t *testing.T) {
		user := mustUser(t, userOf(stranger))
		assert.ErrorIs(t, guard.AuthorizeView(ctx, domain.EntityDeal, deal.ID, user), service.ErrAccessDeniedToEntity)
		_, err := guard.Scope(domain.EntityDeal, user)
		assert.ErrorIs(t, err, service.ErrAccessDeniedToEntity)
	})

	t.Run("scope", func(t *testing.T) {
		scope, err := guard.Scope(domain.EntityDeal, mustUser(t, userOf(owner)))
		require.NoError(t, err)
		require.NotNil(t, scope)
		assert.Equal(t, owner.ID, scope.UserID)

		scope, err = guard.Scope(domain.EntityLead, mustUser(t, userOf(stranger)))
		require.NoError(t, err)
		assert.Nil(t, scope)
	})

	t.Run("projects have no assignments", func(t *testing.T) {
		project := testutil.CreateTestProject(t, db, "Unassignable")
		user := mustUser(t, userOf(owner))
		assert.ErrorIs(t, guard.AuthorizeView(ctx, domain.EntityProject, project.ID, user), service.ErrAccessDeniedToEntity)
	})

	t.Run("anonymous", func(t *testing.T) {
		assert.ErrorIs(t, guard.AuthorizeView(ctx, domain.EntityDeal, deal.ID, nil), service.ErrAccessDeniedToEntity)
	})
}
