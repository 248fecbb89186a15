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

func TestLeadService_Create(t *testing.T) {
	db, admin, ctx := setup(t)
	sender := &recordingSender{}
	svc := createServices(t, db, sender)

	member := testutil.CreateTestUser(t, db, "Member")

	lead, err := svc.leads.Create(ctx, &domain.CreateLeadRequest{
		Name:   "Kari Nordmann",
		Email:  testutil.Ptr("kari@example.no"),
		Source: "referral",
		Notes:  "met at expo",
		Users:  []uuid.UUID{member.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusNew, lead.Status)
	assert.Equal(t, "met at expo", lead.Notes)
	assert.ElementsMatch(t, []uuid.UUID{member.ID, admin.ID}, lead.UserIDs)
	assert.ElementsMatch(t, []uuid.UUID{member.ID, admin.ID}, sender.recipients())

	_, err = svc.leads.Create(ctx, &domain.CreateLeadRequest{Name: "Again", Email: testutil.Ptr("kari@example.no")})
	assert.ErrorIs(t, err, service.ErrLeadAlreadyExists)

	_, err = svc.leads.Create(ctx, &domain.CreateLeadRequest{Name: "No contact", Email: testutil.Ptr("  ")})
	assert.ErrorIs(t, err, service.ErrLeadContactRequired)

	phoneOnly, err := svc.leads.Create(ctx, &domain.CreateLeadRequest{Name: "Phone", Phone: testutil.Ptr("+47 400 00 000")})
	require.NoError(t, err)
	assert.Nil(t, phoneOnly.Email)
}

func TestLeadService_ListScoped(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	member := testutil.CreateTestUser(t, db, "Member", domain.PermissionViewOwnLeads)
	mine := testutil.CreateTestLead(t, db, "Mine", testutil.Ptr("mine@example.no"))
	testutil.CreateTestLead(t, db, "Theirs", testutil.Ptr("theirs@example.no"))
	testutil.Assign(t, db, domain.EntityLead, mine.ID, member.ID)

	all, err := svc.leads.List(ctx, repository.ListOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)

	own, err := svc.leads.List(testutil.UserContext(t, db, member), repository.ListOptions{}, nil)
	require.NoError(t, err)
	leads := own.Data.([]domain.LeadDTO)
	require.Len(t, leads, 1)
	assert.Equal(t, mine.ID, leads[0].ID)
}

func TestAuditLogService_GetByEntity(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, &recordingSender{})

	member := testutil.CreateTestUser(t, db, "Member")
	deal := testutil.CreateTestDeal(t, db, "Tracked", domain.DealStageDraft)

	_, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, deal.ID, []uuid.UUID{member.ID})
	require.NoError(t, err)
	_, err = svc.deals.Update(ctx, deal.ID, &domain.UpdateDealRequest{Name: "Tracked", CompanyName: "Acme AS", Stage: domain.DealStageClosed})
	require.NoError(t, err)

	history, err := svc.auditLogs.GetByEntity(ctx, domain.EntityDeal, deal.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	actions := []string{history[0].Action, history[1].Action}
	assert.ElementsMatch(t, []string{domain.AuditActionUsersUpdated, domain.AuditActionDealUpdated}, actions)
	for _, h := range history {
		assert.Equal(t, admin.ID, h.UserID)
		assert.Equal(t, deal.ID, h.EntityID)
	}

	limited, err := svc.auditLogs.GetByEntity(ctx, domain.EntityDeal, deal.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = svc.auditLogs.GetByEntity(ctx, domain.EntityProposal, uuid.New(), 0)
	assert.ErrorIs(t, err, service.ErrEntityNotAssignable)

	_, err = svc.auditLogs.GetByEntity(ctx, domain.EntityDeal, uuid.New(), 0)
	assert.ErrorIs(t, err, service.ErrDealNotFound)
}
