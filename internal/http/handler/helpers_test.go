package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/http/handler"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/notify"
	"github.com/straye-as/salesflow-api/internal/repository"
	"github.com/straye-as/salesflow-api/internal/service"
	"github.com/straye-as/salesflow-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type handlers struct {
	lead         *handler.LeadHandler
	opportunity  *handler.OpportunityHandler
	deal         *handler.DealHandler
	client       *handler.ClientHandler
	proposal     *handler.ProposalHandler
	notification *handler.NotificationHandler
	assignment   *handler.AssignmentHandler
	audit        *handler.AuditHandler
}

func createHandlers(t *testing.T, db *gorm.DB) *handlers {
	t.Helper()
	logger := zap.NewNop()
	m := metrics.New()

	assignmentRepo := repository.NewAssignmentRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), notify.NoopPublisher{}, logger)
	guard := service.NewAccessGuard(assignmentRepo, logger)
	assignments := service.NewAssignmentService(guard, notifications, m, logger, db)
	lifecycle := service.NewProposalLifecycleService(assignmentRepo, assignments, guard, m, logger, db)
	conversions := service.NewConversionService(assignmentRepo, assignments, guard, m, logger, db)

	return &handlers{
		lead: handler.NewLeadHandler(
			service.NewLeadService(repository.NewLeadRepository(db), assignmentRepo, assignments, guard, logger, db),
			conversions, logger),
		opportunity: handler.NewOpportunityHandler(
			service.NewOpportunityService(repository.NewOpportunityRepository(db), assignmentRepo, guard, logger),
			conversions, logger),
		deal: handler.NewDealHandler(
			service.NewDealService(repository.NewDealRepository(db), assignmentRepo, assignments, guard, logger, db),
			conversions, logger),
		client: handler.NewClientHandler(
			service.NewClientService(repository.NewClientRepository(db), assignmentRepo, guard, logger), logger),
		proposal: handler.NewProposalHandler(
			service.NewProposalService(repository.NewProposalRepository(db), repository.NewProposalLogRepository(db), assignmentRepo, assignments, guard, logger, db),
			lifecycle, logger),
		notification: handler.NewNotificationHandler(notifications, logger),
		assignment:   handler.NewAssignmentHandler(assignments, logger),
		audit:        handler.NewAuditHandler(service.NewAuditLogService(repository.NewAuditLogRepository(db), guard, logger, db), logger),
	}
}

// setup returns a database, an admin user and that user's request context
func setup(t *testing.T) (*gorm.DB, *domain.User, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	admin := testutil.CreateTestUser(t, db, "Admin User", domain.AllPermissions()...)
	return db, admin, testutil.UserContext(t, db, admin)
}

// serve runs h with the given body and chi URL params
func serve(t *testing.T, ctx context.Context, h http.HandlerFunc, method, target string, body interface{}, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))

	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func idParam(id string) map[string]string {
	return map[string]string{"id": id}
}
