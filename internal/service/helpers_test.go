package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/notify"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recordingSender captures notifications instead of storing them
type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (r *recordingSender) Send(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, *n)
	return nil
}

func (r *recordingSender) recipients() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, len(r.sent))
	for i, n := range r.sent {
		ids[i] = n.UserID
	}
	return ids
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// failingSender rejects every notification
type failingSender struct {
	calls int
}

func (f *failingSender) Send(ctx context.Context, n *domain.Notification) error {
	f.calls++
	return errors.New("notification transport unavailable")
}

type services struct {
	db            *gorm.DB
	metrics       *metrics.Metrics
	guard         *service.AccessGuard
	assignments   *service.AssignmentService
	conversions   *service.ConversionService
	deals         *service.DealService
	leads         *service.LeadService
	opportunities *service.OpportunityService
	clients       *service.ClientService
	proposals     *service.ProposalService
	lifecycle     *service.ProposalLifecycleService
	projects      *service.ProjectService
	notifications *service.NotificationService
	auditLogs     *service.AuditLogService
}

// createServices wires every service against db. A nil sender uses the
// database-backed NotificationService.
func createServices(t *testing.T, db *gorm.DB, sender service.NotificationSender) *services {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()

	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationService := service.NewNotificationService(repository.NewNotificationRepository(db), notify.NoopPublisher{}, logger)
	if sender == nil {
		sender = notificationService
	}

	guard := service.NewAccessGuard(assignmentRepo, logger)
	assignments := service.NewAssignmentService(guard, sender, m, logger, db)
	lifecycle := service.NewProposalLifecycleService(assignmentRepo, assignments, guard, m, logger, db)

	return &services{
		db:            db,
		metrics:       m,
		guard:         guard,
		assignments:   assignments,
		conversions:   service.NewConversionService(assignmentRepo, assignments, guard, m, logger, db),
		deals:         service.NewDealService(repository.NewDealRepository(db), assignmentRepo, assignments, guard, logger, db),
		leads:         service.NewLeadService(repository.NewLeadRepository(db), assignmentRepo, assignments, guard, logger, db),
		opportunities: service.NewOpportunityService(repository.NewOpportunityRepository(db), assignmentRepo, guard, logger),
		clients:       service.NewClientService(repository.NewClientRepository(db), assignmentRepo, guard, logger),
		proposals:     service.NewProposalService(repository.NewProposalRepository(db), repository.NewProposalLogRepository(db), assignmentRepo, assignments, guard, logger, db),
		lifecycle:     lifecycle,
		projects:      service.NewProjectService(repository.NewProjectRepository(db), lifecycle, guard, logger, db),
		notifications: notificationService,
		auditLogs:     service.NewAuditLogService(repository.NewAuditLogRepository(db), guard, logger, db),
	}
}

// adminPermissions grants every global permission
func adminPermissions() []domain.Permission {
	return domain.AllPermissions()
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

func assignedUsers(t *testing.T, db *gorm.DB, kind domain.EntityKind, id uuid.UUID) []uuid.UUID {
	t.Helper()
	ids, err := repository.NewAssignmentRepository(db).UserIDs(context.Background(), kind, id)
	require.NoError(t, err)
	return ids
}

func setup(t *testing.T) (*gorm.DB, *domain.User, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	admin := testutil.CreateTestUser(t, db, "Admin User", adminPermissions()...)
	return db, admin, testutil.UserContext(t, db, admin)
}

func mustUser(t *testing.T, ctx context.Context) *auth.UserContext {
	t.Helper()
	user, ok := auth.FromContext(ctx)
	require.True(t, ok)
	return user
}
