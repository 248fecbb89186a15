package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dealNames(t *testing.T, resp *domain.PaginatedResponse) []string {
	t.Helper()
	deals, ok := resp.Data.([]domain.DealDTO)
	require.True(t, ok, "unexpected data type %T", resp.Data)
	names := make([]string, len(deals))
	for i, d := range deals {
		names[i] = d.Name
	}
	return names
}

func TestDealService_List_AccessScoping(t *testing.T) {
	db, _, _ := setup(t)
	svc := createServices(t, db, nil)

	own := testutil.CreateTestUser(t, db, "Own Viewer", domain.PermissionViewOwnDeals)
	global := testutil.CreateTestUser(t, db, "Global Viewer", domain.PermissionViewGlobalDeals)
	none := testutil.CreateTestUser(t, db, "No Deals", domain.PermissionViewGlobalLeads)

	first := testutil.CreateTestDeal(t, db, "First", domain.DealStageDraft)
	second := testutil.CreateTestDeal(t, db, "Second", domain.DealStageNegotiation)
	testutil.CreateTestDeal(t, db, "Third", domain.DealStageClosed)
	testutil.Assign(t, db, domain.EntityDeal, first.ID, own.ID)
	testutil.Assign(t, db, domain.EntityDeal, second.ID, own.ID, global.ID)

	t.Run("view own", func(t *testing.T) {
		resp, err := svc.deals.List(testutil.UserContext(t, db, own), repository.ListOptions{}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Total)
		assert.ElementsMatch(t, []string{"First", "Second"}, dealNames(t, resp))
	})

	t.Run("view global", func(t *testing.T) {
		resp, err := svc.deals.List(testutil.UserContext(t, db, global), repository.ListOptions{}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), resp.Total)
		assert.ElementsMatch(t, []string{"First", "Second", "Third"}, dealNames(t, resp))
	})

	t.Run("no deal permission", func(t *testing.T) {
		_, err := svc.deals.List(testutil.UserContext(t, db, none), repository.ListOptions{}, nil)
		assert.ErrorIs(t, err, service.ErrAccessDeniedToEntity)
	})

	t.Run("pagination", func(t *testing.T) {
		resp, err := svc.deals.List(testutil.UserContext(t, db, global), repository.ListOptions{Page: 2, PageSize: 2}, nil)
		require.NoError(t, err)
		assert.Len(t, dealNames(t, resp), 1)
		assert.Equal(t, 2, resp.TotalPages)
	})

	t.Run("get by id respects assignment", func(t *testing.T) {
		ctx := testutil.UserContext(t, db, own)
		dto, err := svc.deals.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Contains(t, dto.UserIDs, own.ID)

		third, err := svc.deals.List(testutil.UserContext(t, db, global), repository.ListOptions{}, &repository.DealFilters{
			SearchQuery: testutil.Ptr("Third"),
		})
		require.NoError(t, err)
		require.Len(t, third.Data, 1)
		_, err = svc.deals.GetByID(ctx, third.Data.([]domain.DealDTO)[0].ID)
		assert.ErrorIs(t, err, service.ErrAccessDeniedToEntity)
	})
}

func TestDealService_Update_CancelledReason(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	deal := testutil.CreateTestDeal(t, db, "Deal", domain.DealStageNegotiation)
	base := domain.UpdateDealRequest{Name: "Deal", CompanyName: "Acme AS", Price: 1000}

	t.Run("cancel requires reason", func(t *testing.T) {
		req := base
		req.Stage = domain.DealStageCancelled
		_, err := svc.deals.Update(ctx, deal.ID, &req)
		assert.ErrorIs(t, err, service.ErrCancelledReasonRequired)
	})

	t.Run("cancel stores reason", func(t *testing.T) {
		req := base
		req.Stage = domain.DealStageCancelled
		req.CancelledReason = testutil.Ptr("lost to competitor")
		dto, err := svc.deals.Update(ctx, deal.ID, &req)
		require.NoError(t, err)
		assert.Equal(t, domain.DealStageCancelled, dto.Stage)
		require.NotNil(t, dto.CancelledReason)
		assert.Equal(t, "lost to competitor", *dto.CancelledReason)
	})

	t.Run("reopening clears reason", func(t *testing.T) {
		req := base
		req.Stage = domain.DealStageNegotiation
		req.CancelledReason = testutil.Ptr("ignored")
		dto, err := svc.deals.Update(ctx, deal.ID, &req)
		require.NoError(t, err)
		assert.Nil(t, dto.CancelledReason)

		var stored domain.Deal
		require.NoError(t, db.First(&stored, "id = ?", deal.ID).Error)
		assert.Nil(t, stored.CancelledReason)
	})

	t.Run("converted is reserved", func(t *testing.T) {
		req := base
		req.Stage = domain.DealStageConverted
		_, err := svc.deals.Update(ctx, deal.ID, &req)
		assert.ErrorIs(t, err, service.ErrInvalidDealStage)
	})

	assert.Equal(t, int64(2), countRows(t, db, &domain.AuditLog{}, "entity_id = ? AND action = ?", deal.ID, domain.AuditActionDealUpdated))
}

func TestDealService_Update(t *testing.T) {
	db, _, ctx := setup(t)
	sender := &recordingSender{}
	svc := createServices(t, db, sender)

	member := testutil.CreateTestUser(t, db, "Member")
	deal := testutil.CreateTestDeal(t, db, "Deal", domain.DealStageDraft)
	testutil.CreateTestDeal(t, db, "Taken", domain.DealStageDraft)

	t.Run("replaces users", func(t *testing.T) {
		users := []uuid.UUID{member.ID}
		dto, err := svc.deals.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Name:        "Deal renamed",
			CompanyName: "Acme AS",
			Stage:       domain.DealStageInProgress,
			Users:       &users,
		})
		require.NoError(t, err)
		assert.Equal(t, "Deal renamed", dto.Name)
		assert.Equal(t, []uuid.UUID{member.ID}, dto.UserIDs)
		assert.Equal(t, []uuid.UUID{member.ID}, sender.recipients())
	})

	t.Run("keeps users when omitted", func(t *testing.T) {
		sender.reset()
		dto, err := svc.deals.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Name:        "Deal renamed",
			CompanyName: "Acme AS",
			Stage:       domain.DealStageClosed,
		})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{member.ID}, dto.UserIDs)
		assert.Empty(t, sender.recipients())
	})

	t.Run("duplicate name and company", func(t *testing.T) {
		_, err := svc.deals.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Name:        "Taken",
			CompanyName: "Acme AS",
			Stage:       domain.DealStageClosed,
		})
		assert.ErrorIs(t, err, service.ErrDealAlreadyExists)
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("converted deals are read only", func(t *testing.T) {
		converted := testutil.CreateTestDeal(t, db, "Done", domain.DealStageConverted)
		_, err := svc.deals.Update(ctx, converted.ID, &domain.UpdateDealRequest{
			Name:        "Done",
			CompanyName: "Acme AS",
			Stage:       domain.DealStageDraft,
		})
		assert.ErrorIs(t, err, service.ErrDealAlreadyConverted)
	})

	t.Run("missing deal", func(t *testing.T) {
		_, err := svc.deals.Update(ctx, uuid.New(), &domain.UpdateDealRequest{Name: "x", CompanyName: "y", Stage: domain.DealStageDraft})
		assert.ErrorIs(t, err, service.ErrDealNotFound)
	})
}
