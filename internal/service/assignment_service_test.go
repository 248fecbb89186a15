package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiff(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name    string
		current []uuid.UUID
		desired []uuid.UUID
		added   []uuid.UUID
		removed []uuid.UUID
	}{
		{"empty", nil, nil, []uuid.UUID{}, []uuid.UUID{}},
		{"add to empty", nil, []uuid.UUID{a, b}, []uuid.UUID{a, b}, []uuid.UUID{}},
		{"remove all", []uuid.UUID{a}, nil, []uuid.UUID{}, []uuid.UUID{a}},
		{"swap", []uuid.UUID{a, b}, []uuid.UUID{b, c}, []uuid.UUID{c}, []uuid.UUID{a}},
		{"unchanged", []uuid.UUID{a, b}, []uuid.UUID{b, a}, []uuid.UUID{}, []uuid.UUID{}},
		{"duplicates ignored", []uuid.UUID{a}, []uuid.UUID{b, b, a}, []uuid.UUID{b}, []uuid.UUID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := service.ComputeDiff(tt.current, tt.desired)
			assert.ElementsMatch(t, tt.added, diff.Added)
			assert.ElementsMatch(t, tt.removed, diff.Removed)
			assert.NotNil(t, diff.Added)
			assert.NotNil(t, diff.Removed)
		})
	}
}

func TestWithCreator(t *testing.T) {
	creator, other := uuid.New(), uuid.New()

	assert.Equal(t, []uuid.UUID{creator}, service.WithCreator(nil, creator))
	assert.Equal(t, []uuid.UUID{other, creator}, service.WithCreator([]uuid.UUID{other}, creator))
	assert.Equal(t, []uuid.UUID{creator, other}, service.WithCreator([]uuid.UUID{creator, other}, creator))
}

func TestAssignmentService_AssignUsers_NotifiesAddedOnly(t *testing.T) {
	db, admin, ctx := setup(t)
	svc := createServices(t, db, nil)

	seven := testutil.CreateTestUser(t, db, "User Seven")
	nine := testutil.CreateTestUser(t, db, "User Nine")
	deal := testutil.CreateTestDeal(t, db, "D1", domain.DealStageDraft)
	testutil.Assign(t, db, domain.EntityDeal, deal.ID, seven.ID)

	diff, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, deal.ID, []uuid.UUID{seven.ID, nine.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{nine.ID}, diff.Added)
	assert.Empty(t, diff.Removed)

	var notifications []domain.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, nine.ID, notifications[0].UserID)
	assert.Equal(t, domain.NotificationTypeAssigned, notifications[0].Type)
	assert.Equal(t, domain.EntityDeal, notifications[0].EntityKind)
	require.NotNil(t, notifications[0].ActorID)
	assert.Equal(t, admin.ID, *notifications[0].ActorID)
	assert.Contains(t, notifications[0].Body, "D1")

	assert.ElementsMatch(t, []uuid.UUID{seven.ID, nine.ID}, assignedUsers(t, db, domain.EntityDeal, deal.ID))
	assert.Equal(t, int64(1), countRows(t, db, &domain.AuditLog{}, "entity_id = ? AND action = ?", deal.ID, domain.AuditActionUsersUpdated))
}

func TestAssignmentService_AssignUsers_Idempotent(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	one := testutil.CreateTestUser(t, db, "User One")
	two := testutil.CreateTestUser(t, db, "User Two")
	deal := testutil.CreateTestDeal(t, db, "Repeat", domain.DealStageDraft)
	desired := []uuid.UUID{one.ID, two.ID}

	_, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, deal.ID, desired)
	require.NoError(t, err)
	assert.Equal(t, int64(2), countRows(t, db, &domain.Notification{}, ""))

	diff, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, deal.ID, desired)
	require.NoError(t, err)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, int64(2), countRows(t, db, &domain.Notification{}, ""))
	assert.ElementsMatch(t, desired, assignedUsers(t, db, domain.EntityDeal, deal.ID))
}

func TestAssignmentService_AssignUsers_RemovesWithoutNotifying(t *testing.T) {
	db, _, ctx := setup(t)
	sender := &recordingSender{}
	svc := createServices(t, db, sender)

	one := testutil.CreateTestUser(t, db, "User One")
	lead := testutil.CreateTestLead(t, db, "Lead", testutil.Ptr("lead@b.com"))
	testutil.Assign(t, db, domain.EntityLead, lead.ID, one.ID)

	diff, err := svc.assignments.AssignUsers(ctx, domain.EntityLead, lead.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{one.ID}, diff.Removed)
	assert.Empty(t, sender.recipients())
	assert.Empty(t, assignedUsers(t, db, domain.EntityLead, lead.ID))
}

func TestAssignmentService_AssignUsers_SenderFailureIsIsolated(t *testing.T) {
	db, _, ctx := setup(t)
	sender := &failingSender{}
	svc := createServices(t, db, sender)

	one := testutil.CreateTestUser(t, db, "User One")
	two := testutil.CreateTestUser(t, db, "User Two")
	client := testutil.CreateTestClient(t, db, "Acme", testutil.Ptr("acme@b.com"), nil)

	diff, err := svc.assignments.AssignUsers(ctx, domain.EntityClient, client.ID, []uuid.UUID{one.ID, two.ID})
	require.NoError(t, err)
	assert.Len(t, diff.Added, 2)
	assert.Equal(t, 2, sender.calls)
	assert.ElementsMatch(t, []uuid.UUID{one.ID, two.ID}, assignedUsers(t, db, domain.EntityClient, client.ID))
	assert.Equal(t, float64(2), svc.metrics.NotificationCount(metrics.ResultFailure))
	assert.Equal(t, float64(0), svc.metrics.NotificationCount(metrics.ResultSuccess))
}

func TestConversionService_ConvertLeadToDeal_SenderFailureIsIsolated(t *testing.T) {
	db, admin, ctx := setup(t)
	sender := &failingSender{}
	svc := createServices(t, db, sender)

	lead := testutil.CreateTestLead(t, db, "Lead One", testutil.Ptr("a@b.com"))
	deal, err := svc.conversions.ConvertLeadToDeal(ctx, lead.ID, &domain.ConvertLeadToDealRequest{
		DealInput: domain.DealInput{Name: "Acme Website", CompanyName: "Acme", Stage: domain.DealStageDraft},
	})
	require.NoError(t, err)

	// client and deal each notify the creator
	assert.Equal(t, 2, sender.calls)
	assert.Equal(t, int64(1), countRows(t, db, &domain.Deal{}, "id = ?", deal.ID))
	assert.Equal(t, int64(1), countRows(t, db, &domain.Client{}, ""))
	assert.Equal(t, []uuid.UUID{admin.ID}, assignedUsers(t, db, domain.EntityDeal, deal.ID))
	assert.Equal(t, float64(2), svc.metrics.NotificationCount(metrics.ResultFailure))
}

func TestProposalLifecycle_Approve_SenderFailureIsIsolated(t *testing.T) {
	db, _, ctx := setup(t)
	sender := &failingSender{}
	svc := createServices(t, db, sender)

	p, err := svc.proposals.Create(ctx, &domain.CreateProposalRequest{Title: "Approve me", Reference: "A-1"})
	require.NoError(t, err)
	before := sender.calls

	approved, err := svc.lifecycle.Approve(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalStatusApproved, approved.Status)
	assert.Equal(t, before+1, sender.calls)

	var stored domain.Proposal
	require.NoError(t, db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, domain.ProposalStatusApproved, stored.Status)
	assert.Equal(t, int64(1), countRows(t, db, &domain.ProposalLog{}, "proposal_id = ? AND action = ?", p.ID, domain.ProposalActionApproved))
}

func TestAssignmentService_AssignUsers_Errors(t *testing.T) {
	db, _, ctx := setup(t)
	svc := createServices(t, db, nil)

	deal := testutil.CreateTestDeal(t, db, "Deal", domain.DealStageDraft)

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, deal.ID, []uuid.UUID{uuid.New()})
		assert.ErrorIs(t, err, service.ErrUserNotFound)
		assert.Empty(t, assignedUsers(t, db, domain.EntityDeal, deal.ID))
	})

	t.Run("missing entity", func(t *testing.T) {
		_, err := svc.assignments.AssignUsers(ctx, domain.EntityDeal, uuid.New(), nil)
		assert.ErrorIs(t, err, service.ErrDealNotFound)
	})

	t.Run("projects carry no assignments", func(t *testing.T) {
		project := testutil.CreateTestProject(t, db, "Project")
		_, err := svc.assignments.AssignUsers(ctx, domain.EntityProject, project.ID, nil)
		assert.ErrorIs(t, err, service.ErrEntityNotAssignable)
	})

	t.Run("access denied before any write", func(t *testing.T) {
		outsider := testutil.CreateTestUser(t, db, "Outsider", domain.PermissionViewGlobalDeals)
		outsiderCtx := testutil.UserContext(t, db, outsider)

		_, err := svc.assignments.AssignUsers(outsiderCtx, domain.EntityDeal, deal.ID, []uuid.UUID{outsider.ID})
		assert.ErrorIs(t, err, service.ErrAccessDeniedToEntity)
		assert.Empty(t, assignedUsers(t, db, domain.EntityDeal, deal.ID))
		assert.Equal(t, int64(0), countRows(t, db, &domain.AuditLog{}, "entity_id = ?", deal.ID))
	})
}
