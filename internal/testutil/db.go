package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with every table migrated.
// The connection pool is pinned to one connection, so code under test must
// only use the transaction handle while a transaction is open.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open sqlite test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(domain.AllModels()...))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestRole creates a role granting the given permissions
func CreateTestRole(t *testing.T, db *gorm.DB, name string, perms ...domain.Permission) *domain.Role {
	t.Helper()
	role := &domain.Role{Name: name + "-" + uuid.NewString()[:8]}
	require.NoError(t, db.Omit(clause.Associations).Create(role).Error)
	for _, p := range perms {
		require.NoError(t, db.Create(&domain.RolePermission{RoleID: role.ID, Permission: p}).Error)
	}
	return role
}

// CreateTestUser creates an active user holding the given permissions through
// a role of their own
func CreateTestUser(t *testing.T, db *gorm.DB, displayName string, perms ...domain.Permission) *domain.User {
	t.Helper()
	role := CreateTestRole(t, db, displayName, perms...)
	user := &domain.User{
		Email:       fmt.Sprintf("%s-%s@example.com", strings.ToLower(strings.ReplaceAll(displayName, " ", ".")), uuid.NewString()[:8]),
		DisplayName: displayName,
		RoleID:      &role.ID,
		IsActive:    true,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(user).Error)
	return user
}

// UserContext builds the request context a user would get after authentication
func UserContext(t *testing.T, db *gorm.DB, user *domain.User) context.Context {
	t.Helper()
	var perms []domain.Permission
	if user.RoleID != nil {
		require.NoError(t, db.Model(&domain.RolePermission{}).
			Where("role_id = ?", *user.RoleID).
			Pluck("permission", &perms).Error)
	}
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Permissions: perms,
	})
}

// CreateTestLead creates a lead; a nil email leaves it unset
func CreateTestLead(t *testing.T, db *gorm.DB, name string, email *string) *domain.Lead {
	t.Helper()
	lead := &domain.Lead{
		Name:        name,
		Email:       email,
		CompanyName: name + " AS",
		Source:      "web",
		Status:      domain.LeadStatusQualified,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(lead).Error)
	return lead
}

// CreateTestClient creates a client with the given contact details
func CreateTestClient(t *testing.T, db *gorm.DB, name string, email, phone *string) *domain.Client {
	t.Helper()
	client := &domain.Client{
		ClientName:  name,
		Email:       email,
		Phone:       phone,
		CompanyName: name + " AS",
		Status:      domain.ClientStatusActive,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(client).Error)
	return client
}

// CreateTestOpportunity creates an opportunity in the discovery stage
func CreateTestOpportunity(t *testing.T, db *gorm.DB, name string, leadID *uuid.UUID) *domain.Opportunity {
	t.Helper()
	opp := &domain.Opportunity{
		Name:           name,
		LeadID:         leadID,
		Stage:          domain.OpportunityStageDiscovery,
		EstimatedValue: 50000,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(opp).Error)
	return opp
}

// CreateTestDeal creates a deal in the given stage
func CreateTestDeal(t *testing.T, db *gorm.DB, name string, stage domain.DealStage) *domain.Deal {
	t.Helper()
	deal := &domain.Deal{
		Name:        name,
		CompanyName: "Acme AS",
		Price:       100000,
		Stage:       stage,
	}
	require.NoError(t, db.Omit(clause.Associations).Create(deal).Error)
	return deal
}

// CreateTestProject creates an active project
func CreateTestProject(t *testing.T, db *gorm.DB, name string) *domain.Project {
	t.Helper()
	project := &domain.Project{Name: name, Status: domain.ProjectStatusActive}
	require.NoError(t, db.Omit(clause.Associations).Create(project).Error)
	return project
}

// CreateTestProposal creates a proposal in the given status attached to ref
func CreateTestProposal(t *testing.T, db *gorm.DB, title string, status domain.ProposalStatus, ref domain.RelatedEntity) *domain.Proposal {
	t.Helper()
	proposal := &domain.Proposal{
		Title:     title,
		Version:   1,
		Type:      "STANDARD",
		Reference: "REF-" + uuid.NewString()[:8],
		Status:    status,
	}
	proposal.SetRelated(ref)
	require.NoError(t, db.Omit(clause.Associations).Create(proposal).Error)
	return proposal
}

// Assign inserts join rows for an entity without going through the service layer
func Assign(t *testing.T, db *gorm.DB, kind domain.EntityKind, entityID uuid.UUID, userIDs ...uuid.UUID) {
	t.Helper()
	tables := map[domain.EntityKind][2]string{
		domain.EntityLead:        {"lead_users", "lead_id"},
		domain.EntityOpportunity: {"opportunity_users", "opportunity_id"},
		domain.EntityDeal:        {"deal_users", "deal_id"},
		domain.EntityClient:      {"client_users", "client_id"},
		domain.EntityProposal:    {"proposal_users", "proposal_id"},
	}
	tc, ok := tables[kind]
	require.True(t, ok, "kind %s has no assignment table", kind)
	for _, userID := range userIDs {
		require.NoError(t, db.Table(tc[0]).Create(map[string]interface{}{tc[1]: entityID, "user_id": userID}).Error)
	}
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
