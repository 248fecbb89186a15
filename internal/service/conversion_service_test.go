package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acmeWebsite() domain.DealInput {
	return domain.DealInput{
		Name:        "Acme Website",
		CompanyName: "Acme",
		Stage:       domain.DealStageDraft,
	}
}

func TestConversionService_ConvertLeadToDeal(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))

	deal, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
	require.NoError(t, err)

	assert.Equal(t, "Acme Website", deal.Name)
	assert.Equal(t, "Acme", deal.CompanyName)
	assert.Equal(t, domain.DealStageDraft, deal.Stage)
	assert.Contains(t, deal.UserIDs, admin.ID)
	require.NotNil(t, deal.LeadID)
	assert.Equal(t, lead.ID, *deal.LeadID)
	require.NotNil(t, deal.ClientID)

	var reloaded domain.Lead
	require.NoError(t, db.First(&reloaded, "id = ?", lead.ID).Error)
	assert.Equal(t, domain.LeadStatusConverted, reloaded.Status)

	var clients []domain.Client
	require.NoError(t, db.Find(&clients).Error)
	require.Len(t, clients, 1)
	require.NotNil(t, clients[0].Email)
	assert.Equal(t, "a@b.com", *clients[0].Email)
	assert.Equal(t, *deal.ClientID, clients[0].ID)
	assert.Contains(t, assignedUsers(t, db, domain.EntityClient, clients[0].ID), admin.ID)

	assert.Equal(t, int64(1), countRows(t, db, &domain.AuditLog{}, "entity_id = ? AND action = ?", deal.ID, domain.AuditActionDealCreatedFromLead))
}

func TestConversionService_ConvertLeadToDeal_RepeatedConversion(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
	require.NoError(t, err)

	second := acmeWebsite()
	second.Name = "Acme Website v2"
	_, err = svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: second})
	assert.ErrorIs(t, err, service.ErrClientAlreadyFound)

	assert.Equal(t, int64(1), countRows(t, db, &domain.Deal{}, ""))
	assert.Equal(t, int64(1), countRows(t, db, &domain.Client{}, ""))
}

func TestConversionService_ConvertLeadToDeal_RollsBackOnDuplicateDeal(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	existing := testutil.CreateTestDeal(t, db, "Acme Website", domain.DealStageDraft)
	require.NoError(t, db.Model(existing).Update("company_name", "Acme").Error)
	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))

	_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
	assert.ErrorIs(t, err, service.ErrDealAlreadyExists)

	assert.Equal(t, int64(0), countRows(t, db, &domain.Client{}, ""))
	assert.Equal(t, int64(1), countRows(t, db, &domain.Deal{}, ""))
	assert.Equal(t, int64(0), countRows(t, db, &domain.AuditLog{}, ""))

	var reloaded domain.Lead
	require.NoError(t, db.First(&reloaded, "id = ?", lead.ID).Error)
	assert.Equal(t, domain.LeadStatusQualified, reloaded.Status)
	assert.Empty(t, assignedUsers(t, db, domain.EntityLead, lead.ID))
}

func TestConversionService_ConvertLeadToDeal_WithOpportunity(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp := testutil.CreateTestOpportunity(t, db, "Website rebuild", &lead.ID)

	deal, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{
		DealInput:     acmeWebsite(),
		OpportunityID: &opp.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, deal.OpportunityID)
	assert.Equal(t, opp.ID, *deal.OpportunityID)

	var reloaded domain.Opportunity
	require.NoError(t, db.First(&reloaded, "id = ?", opp.ID).Error)
	assert.Equal(t, domain.OpportunityStageConverted, reloaded.Stage)
	require.NotNil(t, reloaded.ClientID)
	assert.Equal(t, *deal.ClientID, *reloaded.ClientID)
}

func TestConversionService_ConvertLeadToDeal_ConvertedOpportunity(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp := testutil.CreateTestOpportunity(t, db, "Website rebuild", &lead.ID)
	require.NoError(t, db.Model(opp).Update("stage", domain.OpportunityStageConverted).Error)

	_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{
		DealInput:     acmeWebsite(),
		OpportunityID: &opp.ID,
	})
	assert.ErrorIs(t, err, service.ErrOpportunityAlreadyConverted)
	assert.Equal(t, int64(0), countRows(t, db, &domain.Client{}, ""))
}

func TestConversionService_ConvertLeadToDeal_Errors(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	t.Run("missing lead", func(t *testing.T) {
		_, err := svc.conversions.ConvertLeadToDeal(ctx, uuid.New(), &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
		assert.ErrorIs(t, err, service.ErrLeadNotFound)
	})

	t.Run("cancelled without reason", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "Lead Two", testutil.Ptr("two@b.com"))
		input := acmeWebsite()
		input.Stage = domain.DealStageCancelled
		_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: input})
		assert.ErrorIs(t, err, service.ErrCancelledReasonRequired)
	})

	t.Run("converted is not a user stage", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "Lead Three", testutil.Ptr("three@b.com"))
		input := acmeWebsite()
		input.Stage = domain.DealStageConverted
		_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: input})
		assert.ErrorIs(t, err, service.ErrInvalidDealStage)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "Lead Four", testutil.Ptr("four@b.com"))
		input := acmeWebsite()
		input.Name = "Unknown assignee"
		input.Users = []uuid.UUID{uuid.New()}
		_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: input})
		assert.ErrorIs(t, err, service.ErrUserNotFound)
		assert.Equal(t, int64(0), countRows(t, db, &domain.Deal{}, "name = ?", "Unknown assignee"))
	})
}

func TestConversionService_ConvertLeadToDeal_AccessDenied(t *testing.T) {
	db, _, _ := setup(t)
	svc := createServices(t, db, nil)

	viewer := testutil.CreateTestUser(t, db, "Viewer", domain.PermissionViewOwnLeads)
	ctx := testutil.UserContext(t, db, viewer)
	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))

	_, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
	assert.ErrorIs(t, err, service.ErrAccessDeniedToEntity)
	assert.ErrorIs(t, err, service.ErrAccessDenied)

	// assignment grants edit rights without the global permission
	testutil.Assign(t, db, domain.EntityLead, lead.ID, viewer.ID)
	_, err = svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{DealInput: acmeWebsite()})
	assert.NoError(t, err)
}

func TestConversionService_CreateDeal(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	t.Run("with new lead", func(t *testing.T) {
		input := acmeWebsite()
		input.Invoices = []domain.InvoiceInput{{Reference: "INV-1", Amount: 5000}}
		input.DeliveryDetails = []domain.DeliveryDetailInput{{Address: "Storgata 1"}}

		deal, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{
			DealInput: input,
			Lead:      &domain.NewLeadInput{Name: "Inline Lead", Email: testutil.Ptr("inline@b.com")},
		})
		require.NoError(t, err)
		require.NotNil(t, deal.LeadID)
		require.NotNil(t, deal.ClientID)
		assert.Len(t, deal.Invoices, 1)
		assert.Len(t, deal.DeliveryDetails, 1)
		assert.Equal(t, []uuid.UUID{admin.ID}, deal.UserIDs)

		var lead domain.Lead
		require.NoError(t, db.First(&lead, "id = ?", *deal.LeadID).Error)
		assert.Equal(t, domain.LeadStatusConverted, lead.Status)
	})

	t.Run("with client", func(t *testing.T) {
		client := testutil.CreateTestClient(t, db, "Beta", testutil.Ptr("beta@b.com"), nil)
		input := acmeWebsite()
		input.CompanyName = "Beta"

		deal, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{DealInput: input, ClientID: &client.ID})
		require.NoError(t, err)
		assert.Equal(t, client.ID, *deal.ClientID)
		assert.Nil(t, deal.LeadID)
	})

	t.Run("ambiguous source", func(t *testing.T) {
		leadID := uuid.New()
		_, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{
			DealInput: acmeWebsite(),
			LeadID:    &leadID,
			Lead:      &domain.NewLeadInput{Name: "Other", Email: testutil.Ptr("x@b.com")},
		})
		assert.ErrorIs(t, err, service.ErrDealSourceAmbiguous)
	})

	t.Run("inline lead without contact", func(t *testing.T) {
		_, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{
			DealInput: acmeWebsite(),
			Lead:      &domain.NewLeadInput{Name: "No contact"},
		})
		assert.ErrorIs(t, err, service.ErrLeadContactRequired)
	})

	t.Run("duplicate inline lead email", func(t *testing.T) {
		input := acmeWebsite()
		input.Name = "Duplicate email"
		_, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{
			DealInput: input,
			Lead:      &domain.NewLeadInput{Name: "Again", Email: testutil.Ptr("inline@b.com")},
		})
		assert.ErrorIs(t, err, service.ErrLeadAlreadyExists)
	})

	t.Run("cancelled keeps reason", func(t *testing.T) {
		input := acmeWebsite()
		input.Name = "Cancelled deal"
		input.Stage = domain.DealStageCancelled
		input.CancelledReason = testutil.Ptr("  customer withdrew ")

		deal, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{DealInput: input})
		require.NoError(t, err)
		require.NotNil(t, deal.CancelledReason)
		assert.Equal(t, "customer withdrew", *deal.CancelledReason)
	})

	t.Run("reason cleared outside cancelled", func(t *testing.T) {
		input := acmeWebsite()
		input.Name = "Open deal"
		input.CancelledReason = testutil.Ptr("stale reason")

		deal, err := svc.conversions.CreateDeal(ctx, &domain.CreateDealRequest{DealInput: input})
		require.NoError(t, err)
		assert.Nil(t, deal.CancelledReason)
	})
}

func TestConversionService_CreateOpportunity(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp, err := svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{
		LeadID:         &lead.ID,
		Name:           "Website rebuild",
		EstimatedValue: 120000,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OpportunityStageDiscovery, opp.Stage)
	assert.Equal(t, []uuid.UUID{admin.ID}, opp.UserIDs)

	var reloaded domain.Lead
	require.NoError(t, db.First(&reloaded, "id = ?", lead.ID).Error)
	assert.Equal(t, domain.LeadStatusConverted, reloaded.Status)
	assert.Equal(t, int64(1), countRows(t, db, &domain.AuditLog{}, "entity_id = ? AND action = ?", opp.ID, domain.AuditActionOpportunityFromLead))

	missing := uuid.New()
	_, err = svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{ClientID: &missing, Name: "Orphan"})
	assert.ErrorIs(t, err, service.ErrClientNotFound)
}

func TestConversionService_ConvertOpportunityToDeal(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp := testutil.CreateTestOpportunity(t, db, "Website rebuild", &lead.ID)

	deal, err := svc.conversions.ConvertOpportunityToDeal(ctx, opp.ID, &domain.DealInput{
		Name:        "Website rebuild",
		CompanyName: "Acme",
		Price:       120000,
		Stage:       domain.DealStageNegotiation,
	})
	require.NoError(t, err)
	require.NotNil(t, deal.OpportunityID)
	assert.Equal(t, opp.ID, *deal.OpportunityID)
	require.NotNil(t, deal.ClientID)
	assert.Equal(t, lead.ID, *deal.LeadID)

	var reloaded domain.Opportunity
	require.NoError(t, db.First(&reloaded, "id = ?", opp.ID).Error)
	assert.Equal(t, domain.OpportunityStageConverted, reloaded.Stage)
	assert.Equal(t, *deal.ClientID, *reloaded.ClientID)

	_, err = svc.conversions.ConvertOpportunityToDeal(ctx, opp.ID, &domain.DealInput{
		Name:        "Website rebuild 2",
		CompanyName: "Acme",
		Stage:       domain.DealStageDraft,
	})
	assert.ErrorIs(t, err, service.ErrOpportunityAlreadyConverted)
}

func TestConversionService_CreateOpportunity_DerivesClient(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp, err := svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{LeadID: &lead.ID, Name: "Website rebuild"})
	require.NoError(t, err)
	require.NotNil(t, opp.ClientID)

	var client domain.Client
	require.NoError(t, db.First(&client, "id = ?", *opp.ClientID).Error)
	require.NotNil(t, client.Email)
	assert.Equal(t, "a@b.com", *client.Email)
	assert.Contains(t, assignedUsers(t, db, domain.EntityClient, client.ID), admin.ID)

	t.Run("converted lead is rejected", func(t *testing.T) {
		_, err := svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{LeadID: &lead.ID, Name: "Second try"})
		assert.ErrorIs(t, err, service.ErrLeadAlreadyConverted)
		assert.Equal(t, int64(1), countRows(t, db, &domain.Opportunity{}, ""))
		assert.Equal(t, int64(1), countRows(t, db, &domain.Client{}, ""))
	})

	t.Run("matching client is linked", func(t *testing.T) {
		other := testutil.CreateTestLead(t, db, "Lead Two", testutil.Ptr("A@B.com"))
		opp, err := svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{LeadID: &other.ID, Name: "Maintenance"})
		require.NoError(t, err)
		require.NotNil(t, opp.ClientID)
		assert.Equal(t, client.ID, *opp.ClientID)
		assert.Equal(t, int64(1), countRows(t, db, &domain.Client{}, ""))
	})

	t.Run("explicit client wins", func(t *testing.T) {
		acme := testutil.CreateTestClient(t, db, "Acme", testutil.Ptr("post@acme.no"), nil)
		third := testutil.CreateTestLead(t, db, "Lead Three", testutil.Ptr("three@b.com"))
		opp, err := svc.conversions.CreateOpportunity(ctx, &domain.CreateOpportunityRequest{LeadID: &third.ID, ClientID: &acme.ID, Name: "Fit-out"})
		require.NoError(t, err)
		require.NotNil(t, opp.ClientID)
		assert.Equal(t, acme.ID, *opp.ClientID)
		assert.Equal(t, int64(0), countRows(t, db, &domain.Client{}, "email = ?", "three@b.com"))
	})
}

func TestConversionService_ConvertOpportunityToDeal_LinksExistingClient(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	existing := testutil.CreateTestClient(t, db, "Acme", testutil.Ptr("a@b.com"), nil)
	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	opp := testutil.CreateTestOpportunity(t, db, "Website rebuild", &lead.ID)

	deal, err := svc.conversions.ConvertOpportunityToDeal(ctx, opp.ID, &domain.DealInput{
		Name:        "Website rebuild",
		CompanyName: "Acme",
		Stage:       domain.DealStageDraft,
	})
	require.NoError(t, err)
	require.NotNil(t, deal.ClientID)
	assert.Equal(t, existing.ID, *deal.ClientID)
	assert.Equal(t, int64(1), countRows(t, db, &domain.Client{}, ""))

	var reloaded domain.Opportunity
	require.NoError(t, db.First(&reloaded, "id = ?", opp.ID).Error)
	require.NotNil(t, reloaded.ClientID)
	assert.Equal(t, existing.ID, *reloaded.ClientID)
	assert.Empty(t, assignedUsers(t, db, domain.EntityClient, existing.ID))
}

func TestConversionService_ConvertDealToProject(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	deal := testutil.CreateTestDeal(t, db, "Closed deal", domain.DealStageClosed)
	project, err := svc.conversions.ConvertDealToProject(ctx, deal.ID, &domain.CreateProjectRequest{Name: "Delivery"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusActive, project.Status)
	require.NotNil(t, project.DealID)
	assert.Equal(t, deal.ID, *project.DealID)

	var reloaded domain.Deal
	require.NoError(t, db.First(&reloaded, "id = ?", deal.ID).Error)
	assert.Equal(t, domain.DealStageConverted, reloaded.Stage)

	_, err = svc.conversions.ConvertDealToProject(ctx, deal.ID, &domain.CreateProjectRequest{Name: "Again"})
	assert.ErrorIs(t, err, service.ErrDealAlreadyConverted)

	cancelled := testutil.CreateTestDeal(t, db, "Cancelled deal", domain.DealStageCancelled)
	_, err = svc.conversions.ConvertDealToProject(ctx, cancelled.ID, &domain.CreateProjectRequest{Name: "Never"})
	assert.ErrorIs(t, err, service.ErrDealNotConvertible)
	assert.Equal(t, int64(1), countRows(t, db, &domain.Project{}, ""))
}
