package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/domain"
	"github.com/straye-as/salesflow-api/internal/logger"
	"github.com/straye-as/salesflow-api/internal/mapper"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/straye-as/salesflow-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Conversion operation names used in metrics and logs
const (
	OperationLeadToDeal        = "lead_to_deal"
	OperationCreateDeal        = "create_deal"
	OperationCreateOpportunity = "create_opportunity"
	OperationOpportunityToDeal = "opportunity_to_deal"
	OperationDealToProject     = "deal_to_project"
)

// ConversionService moves records along the pipeline: lead to deal or
// opportunity, opportunity to deal, deal to project. Every operation is a
// single transaction; assignment notifications go out after commit.
type ConversionService struct {
	assignmentRepo *repository.AssignmentRepository
	assignments    *AssignmentService
	guard          *AccessGuard
	metrics        *metrics.Metrics
	logger         *zap.Logger
	db             *gorm.DB
}

func NewConversionService(
	assignmentRepo *repository.AssignmentRepository,
	assignments *AssignmentService,
	guard *AccessGuard,
	m *metrics.Metrics,
	logger *zap.Logger,
	db *gorm.DB,
) *ConversionService {
	return &ConversionService{
		assignmentRepo: assignmentRepo,
		assignments:    assignments,
		guard:          guard,
		metrics:        m,
		logger:         logger,
		db:             db,
	}
}

// pendingNotice is an assignment change to announce once the transaction commits
type pendingNotice struct {
	kind  domain.EntityKind
	id    uuid.UUID
	label string
	diff  AssignmentDiff
}

func (s *ConversionService) notifyAll(ctx context.Context, notices []pendingNotice, user *auth.UserContext) {
	for _, n := range notices {
		s.assignments.Notify(ctx, n.kind, n.id, n.label, n.diff, user)
	}
}

// authorizeSource checks that a source record exists and that the user may edit it
func (s *ConversionService) authorizeSource(ctx context.Context, kind domain.EntityKind, id uuid.UUID, user *auth.UserContext) error {
	if _, err := loadEntityLabel(ctx, s.db, kind, id); err != nil {
		return err
	}
	return s.guard.AuthorizeEdit(ctx, kind, id, user)
}

// ConvertLeadToDeal turns a lead into a client and a deal. A lead whose
// contact already belongs to a client is rejected with ErrClientAlreadyFound.
func (s *ConversionService) ConvertLeadToDeal(ctx context.Context, leadID uuid.UUID, req *domain.ConvertLeadToDealRequest) (dto *domain.DealDTO, err error) {
	defer func() { s.metrics.RecordConversion(OperationLeadToDeal, err) }()

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSource(ctx, domain.EntityLead, leadID, user); err != nil {
		return nil, err
	}
	deal, err := newDealFromInput(&req.DealInput)
	if err != nil {
		return nil, err
	}

	log := logger.WithEntity(s.logger, string(domain.EntityLead), leadID.String())

	var notices []pendingNotice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		leadRepo := repository.NewLeadRepository(tx)
		oppRepo := repository.NewOpportunityRepository(tx)

		lead, err := leadRepo.GetByID(ctx, leadID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeadNotFound
			}
			return fmt.Errorf("failed to get lead: %w", err)
		}
		if err := leadRepo.UpdateStatus(ctx, lead.ID, domain.LeadStatusConverted); err != nil {
			return fmt.Errorf("failed to update lead status: %w", err)
		}

		client, notice, err := s.createClientFromLead(ctx, tx, lead, user)
		if err != nil {
			return err
		}
		notices = append(notices, notice)

		var opp *domain.Opportunity
		if req.OpportunityID != nil {
			opp, err = oppRepo.GetByID(ctx, *req.OpportunityID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrOpportunityNotFound
				}
				return fmt.Errorf("failed to get opportunity: %w", err)
			}
			if opp.Stage == domain.OpportunityStageConverted {
				return ErrOpportunityAlreadyConverted
			}
		}

		deal.LeadID = &lead.ID
		deal.ClientID = &client.ID
		deal.OpportunityID = req.OpportunityID
		if err := s.insertDeal(ctx, tx, deal, &req.DealInput); err != nil {
			return err
		}

		if opp != nil {
			if err := oppRepo.UpdateStage(ctx, opp.ID, domain.OpportunityStageConverted); err != nil {
				return fmt.Errorf("failed to update opportunity stage: %w", err)
			}
			if opp.ClientID == nil {
				if err := oppRepo.SetClient(ctx, opp.ID, client.ID); err != nil {
					return fmt.Errorf("failed to link opportunity client: %w", err)
				}
			}
		}

		diff, err := s.assignments.Reconcile(ctx, tx, domain.EntityDeal, deal.ID, WithCreator(req.Users, user.UserID))
		if err != nil {
			return err
		}
		notices = append(notices, pendingNotice{domain.EntityDeal, deal.ID, deal.Name, diff})

		return appendAudit(ctx, tx, domain.EntityDeal, deal.ID, user.UserID, domain.AuditActionDealCreatedFromLead,
			fmt.Sprintf("lead=%s client=%s", lead.ID, client.ID))
	})
	if err != nil {
		log.Debug("lead conversion failed", zap.Error(err))
		return nil, err
	}

	log.Info("lead converted to deal",
		zap.String("deal_id", deal.ID.String()),
		zap.String("user_id", user.UserID.String()))

	s.notifyAll(ctx, notices, user)
	return s.loadDeal(ctx, deal.ID)
}

// CreateDeal creates a deal from an existing lead, a new lead or a client id.
// When a lead is involved and no client is given, the client is derived from
// the lead the same way ConvertLeadToDeal does it.
func (s *ConversionService) CreateDeal(ctx context.Context, req *domain.CreateDealRequest) (dto *domain.DealDTO, err error) {
	defer func() { s.metrics.RecordConversion(OperationCreateDeal, err) }()

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.LeadID != nil && req.Lead != nil {
		return nil, ErrDealSourceAmbiguous
	}
	if req.Lead != nil && isBlank(req.Lead.Email) && isBlank(req.Lead.Phone) {
		return nil, ErrLeadContactRequired
	}
	if req.LeadID != nil {
		if err := s.authorizeSource(ctx, domain.EntityLead, *req.LeadID, user); err != nil {
			return nil, err
		}
	}
	deal, err := newDealFromInput(&req.DealInput)
	if err != nil {
		return nil, err
	}

	var notices []pendingNotice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		leadRepo := repository.NewLeadRepository(tx)

		var lead *domain.Lead
		switch {
		case req.LeadID != nil:
			lead, err = leadRepo.GetByID(ctx, *req.LeadID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLeadNotFound
				}
				return fmt.Errorf("failed to get lead: %w", err)
			}
			if err := leadRepo.UpdateStatus(ctx, lead.ID, domain.LeadStatusConverted); err != nil {
				return fmt.Errorf("failed to update lead status: %w", err)
			}
		case req.Lead != nil:
			var notice pendingNotice
			lead, notice, err = insertLead(ctx, tx, s.assignments, req.Lead, domain.LeadStatusConverted, nil, user)
			if err != nil {
				return err
			}
			notices = append(notices, notice)
		}

		switch {
		case req.ClientID != nil:
			client, err := repository.NewClientRepository(tx).GetByID(ctx, *req.ClientID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrClientNotFound
				}
				return fmt.Errorf("failed to get client: %w", err)
			}
			deal.ClientID = &client.ID
		case lead != nil:
			client, notice, err := s.createClientFromLead(ctx, tx, lead, user)
			if err != nil {
				return err
			}
			notices = append(notices, notice)
			deal.ClientID = &client.ID
		}
		if lead != nil {
			deal.LeadID = &lead.ID
		}

		if err := s.insertDeal(ctx, tx, deal, &req.DealInput); err != nil {
			return err
		}

		diff, err := s.assignments.Reconcile(ctx, tx, domain.EntityDeal, deal.ID, WithCreator(req.Users, user.UserID))
		if err != nil {
			return err
		}
		notices = append(notices, pendingNotice{domain.EntityDeal, deal.ID, deal.Name, diff})

		return appendAudit(ctx, tx, domain.EntityDeal, deal.ID, user.UserID, domain.AuditActionDealCreated, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal created",
		zap.String("deal_id", deal.ID.String()),
		zap.String("user_id", user.UserID.String()))

	s.notifyAll(ctx, notices, user)
	return s.loadDeal(ctx, deal.ID)
}

// CreateOpportunity creates an opportunity. A given lead must not be converted
// yet; it is marked CONVERTED and, unless a client id is supplied, the
// opportunity is linked to the client matching the lead or to a new one.
func (s *ConversionService) CreateOpportunity(ctx context.Context, req *domain.CreateOpportunityRequest) (dto *domain.OpportunityDTO, err error) {
	defer func() { s.metrics.RecordConversion(OperationCreateOpportunity, err) }()

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.LeadID != nil {
		if err := s.authorizeSource(ctx, domain.EntityLead, *req.LeadID, user); err != nil {
			return nil, err
		}
	}

	stage := req.Stage
	if stage == "" {
		stage = domain.OpportunityStageDiscovery
	}
	opp := &domain.Opportunity{
		Name:           req.Name,
		Stage:          stage,
		EstimatedValue: req.EstimatedValue,
		Profit:         req.Profit,
	}

	var notices []pendingNotice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		action := domain.AuditActionOpportunityCreated

		if req.ClientID != nil {
			if _, err := repository.NewClientRepository(tx).GetByID(ctx, *req.ClientID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrClientNotFound
				}
				return fmt.Errorf("failed to get client: %w", err)
			}
			opp.ClientID = req.ClientID
		}

		if req.LeadID != nil {
			leadRepo := repository.NewLeadRepository(tx)
			lead, err := leadRepo.GetByID(ctx, *req.LeadID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLeadNotFound
				}
				return fmt.Errorf("failed to get lead: %w", err)
			}
			if lead.Status == domain.LeadStatusConverted {
				return ErrLeadAlreadyConverted
			}
			if err := leadRepo.UpdateStatus(ctx, lead.ID, domain.LeadStatusConverted); err != nil {
				return fmt.Errorf("failed to update lead status: %w", err)
			}
			opp.LeadID = &lead.ID
			action = domain.AuditActionOpportunityFromLead

			if opp.ClientID == nil {
				client, notice, err := s.linkOrCreateClient(ctx, tx, lead, user)
				if err != nil {
					return err
				}
				notices = append(notices, notice)
				opp.ClientID = &client.ID
			}
		}

		if err := repository.NewOpportunityRepository(tx).Create(ctx, opp); err != nil {
			return fmt.Errorf("failed to create opportunity: %w", err)
		}

		diff, err := s.assignments.Reconcile(ctx, tx, domain.EntityOpportunity, opp.ID, WithCreator(req.Users, user.UserID))
		if err != nil {
			return err
		}
		notices = append(notices, pendingNotice{domain.EntityOpportunity, opp.ID, opp.Name, diff})

		return appendAudit(ctx, tx, domain.EntityOpportunity, opp.ID, user.UserID, action, "")
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("opportunity created",
		zap.String("opportunity_id", opp.ID.String()),
		zap.Bool("from_lead", opp.LeadID != nil))

	s.notifyAll(ctx, notices, user)

	created, err := repository.NewOpportunityRepository(s.db).GetByID(ctx, opp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload opportunity: %w", err)
	}
	users, err := s.assignmentRepo.UserIDs(ctx, domain.EntityOpportunity, opp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load opportunity assignments: %w", err)
	}
	result := mapper.ToOpportunityDTO(created, users)
	return &result, nil
}

// ConvertOpportunityToDeal creates a deal from an opportunity and marks the
// opportunity CONVERTED. The client is the opportunity's own, else the client
// matching its lead's contact, else a new one built from the lead.
func (s *ConversionService) ConvertOpportunityToDeal(ctx context.Context, opportunityID uuid.UUID, input *domain.DealInput) (dto *domain.DealDTO, err error) {
	defer func() { s.metrics.RecordConversion(OperationOpportunityToDeal, err) }()

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSource(ctx, domain.EntityOpportunity, opportunityID, user); err != nil {
		return nil, err
	}
	deal, err := newDealFromInput(input)
	if err != nil {
		return nil, err
	}

	var notices []pendingNotice
	err = s.db.Transaction(func(tx *gorm.DB) error {
		oppRepo := repository.NewOpportunityRepository(tx)

		opp, err := oppRepo.GetByID(ctx, opportunityID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOpportunityNotFound
			}
			return fmt.Errorf("failed to get opportunity: %w", err)
		}
		if opp.Stage == domain.OpportunityStageConverted {
			return ErrOpportunityAlreadyConverted
		}

		clientID := opp.ClientID
		if clientID == nil && opp.LeadID != nil {
			lead, err := repository.NewLeadRepository(tx).GetByID(ctx, *opp.LeadID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrLeadNotFound
				}
				return fmt.Errorf("failed to get lead: %w", err)
			}
			client, notice, err := s.linkOrCreateClient(ctx, tx, lead, user)
			if err != nil {
				return err
			}
			notices = append(notices, notice)
			clientID = &client.ID
			if err := oppRepo.SetClient(ctx, opp.ID, client.ID); err != nil {
				return fmt.Errorf("failed to link opportunity client: %w", err)
			}
		}

		deal.OpportunityID = &opp.ID
		deal.LeadID = opp.LeadID
		deal.ClientID = clientID
		if err := s.insertDeal(ctx, tx, deal, input); err != nil {
			return err
		}
		if err := oppRepo.UpdateStage(ctx, opp.ID, domain.OpportunityStageConverted); err != nil {
			return fmt.Errorf("failed to update opportunity stage: %w", err)
		}

		diff, err := s.assignments.Reconcile(ctx, tx, domain.EntityDeal, deal.ID, WithCreator(input.Users, user.UserID))
		if err != nil {
			return err
		}
		notices = append(notices, pendingNotice{domain.EntityDeal, deal.ID, deal.Name, diff})

		return appendAudit(ctx, tx, domain.EntityDeal, deal.ID, user.UserID, domain.AuditActionDealCreatedFromOpportunity,
			fmt.Sprintf("opportunity=%s", opp.ID))
	})
	if err != nil {
		return nil, err
	}

	logger.WithEntity(s.logger, string(domain.EntityOpportunity), opportunityID.String()).
		Info("opportunity converted to deal", zap.String("deal_id", deal.ID.String()))

	s.notifyAll(ctx, notices, user)
	return s.loadDeal(ctx, deal.ID)
}

// ConvertDealToProject marks a deal CONVERTED and opens a project for it
func (s *ConversionService) ConvertDealToProject(ctx context.Context, dealID uuid.UUID, req *domain.CreateProjectRequest) (dto *domain.ProjectDTO, err error) {
	defer func() { s.metrics.RecordConversion(OperationDealToProject, err) }()

	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSource(ctx, domain.EntityDeal, dealID, user); err != nil {
		return nil, err
	}

	var project *domain.Project
	err = s.db.Transaction(func(tx *gorm.DB) error {
		dealRepo := repository.NewDealRepository(tx)

		deal, err := dealRepo.GetByID(ctx, dealID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDealNotFound
			}
			return fmt.Errorf("failed to get deal: %w", err)
		}
		switch deal.Stage {
		case domain.DealStageConverted:
			return ErrDealAlreadyConverted
		case domain.DealStageCancelled:
			return ErrDealNotConvertible
		}

		if err := dealRepo.UpdateStage(ctx, deal.ID, domain.DealStageConverted); err != nil {
			return fmt.Errorf("failed to update deal stage: %w", err)
		}

		project = &domain.Project{
			Name:     req.Name,
			DealID:   &deal.ID,
			ClientID: deal.ClientID,
			Status:   domain.ProjectStatusActive,
		}
		if err := repository.NewProjectRepository(tx).Create(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		return appendAudit(ctx, tx, domain.EntityProject, project.ID, user.UserID, domain.AuditActionProjectCreatedFromDeal,
			fmt.Sprintf("deal=%s", deal.ID))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal converted to project",
		zap.String("deal_id", dealID.String()),
		zap.String("project_id", project.ID.String()))

	result := mapper.ToProjectDTO(project)
	return &result, nil
}

// createClientFromLead creates a client from the lead's contact fields and
// assigns the creator. An existing client with the same contact is a conflict.
func (s *ConversionService) createClientFromLead(ctx context.Context, tx *gorm.DB, lead *domain.Lead, user *auth.UserContext) (*domain.Client, pendingNotice, error) {
	existing, err := findClientForLead(ctx, tx, lead)
	if err != nil {
		return nil, pendingNotice{}, err
	}
	if existing != nil {
		return nil, pendingNotice{}, ErrClientAlreadyFound
	}
	return s.insertClientFromLead(ctx, tx, lead, user)
}

// linkOrCreateClient returns the client matching the lead's contact and
// creates one only when none matches. A linked client keeps its assignments.
func (s *ConversionService) linkOrCreateClient(ctx context.Context, tx *gorm.DB, lead *domain.Lead, user *auth.UserContext) (*domain.Client, pendingNotice, error) {
	existing, err := findClientForLead(ctx, tx, lead)
	if err != nil {
		return nil, pendingNotice{}, err
	}
	if existing != nil {
		return existing, pendingNotice{}, nil
	}
	return s.insertClientFromLead(ctx, tx, lead, user)
}

func findClientForLead(ctx context.Context, tx *gorm.DB, lead *domain.Lead) (*domain.Client, error) {
	client, err := repository.NewClientRepository(tx).FindByContact(ctx, lead.Email, lead.Phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	return client, nil
}

func (s *ConversionService) insertClientFromLead(ctx context.Context, tx *gorm.DB, lead *domain.Lead, user *auth.UserContext) (*domain.Client, pendingNotice, error) {
	client := &domain.Client{
		ClientName:  lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		CompanyName: lead.CompanyName,
		Status:      domain.ClientStatusActive,
	}
	if err := repository.NewClientRepository(tx).Create(ctx, client); err != nil {
		return nil, pendingNotice{}, uniqueViolation(err, ErrClientAlreadyFound, "failed to create client")
	}

	diff, err := s.assignments.Reconcile(ctx, tx, domain.EntityClient, client.ID, WithCreator(nil, user.UserID))
	if err != nil {
		return nil, pendingNotice{}, err
	}
	return client, pendingNotice{domain.EntityClient, client.ID, client.ClientName, diff}, nil
}

// insertLead creates a lead after the duplicate email pre-check, assigns
// users plus the creator and writes the LEAD_CREATED audit row
func insertLead(ctx context.Context, tx *gorm.DB, assignments *AssignmentService, input *domain.NewLeadInput, status domain.LeadStatus, users []uuid.UUID, user *auth.UserContext) (*domain.Lead, pendingNotice, error) {
	leadRepo := repository.NewLeadRepository(tx)

	if !isBlank(input.Email) {
		_, err := leadRepo.GetByEmail(ctx, *input.Email)
		switch {
		case err == nil:
			return nil, pendingNotice{}, ErrLeadAlreadyExists
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pendingNotice{}, fmt.Errorf("failed to look up lead: %w", err)
		}
	}

	lead := &domain.Lead{
		Name:        input.Name,
		Email:       blankToNil(input.Email),
		Phone:       blankToNil(input.Phone),
		CompanyName: input.CompanyName,
		Source:      input.Source,
		Status:      status,
	}
	if err := leadRepo.Create(ctx, lead); err != nil {
		return nil, pendingNotice{}, uniqueViolation(err, ErrLeadAlreadyExists, "failed to create lead")
	}

	diff, err := assignments.Reconcile(ctx, tx, domain.EntityLead, lead.ID, WithCreator(users, user.UserID))
	if err != nil {
		return nil, pendingNotice{}, err
	}
	if err := appendAudit(ctx, tx, domain.EntityLead, lead.ID, user.UserID, domain.AuditActionLeadCreated, ""); err != nil {
		return nil, pendingNotice{}, err
	}
	return lead, pendingNotice{domain.EntityLead, lead.ID, lead.Name, diff}, nil
}

// insertDeal checks (name, company) uniqueness, then writes the deal and its
// invoices and delivery details
func (s *ConversionService) insertDeal(ctx context.Context, tx *gorm.DB, deal *domain.Deal, input *domain.DealInput) error {
	dealRepo := repository.NewDealRepository(tx)

	exists, err := dealRepo.ExistsByNameAndCompany(ctx, deal.Name, deal.CompanyName, nil)
	if err != nil {
		return fmt.Errorf("failed to check deal uniqueness: %w", err)
	}
	if exists {
		return ErrDealAlreadyExists
	}

	if err := dealRepo.Create(ctx, deal); err != nil {
		return uniqueViolation(err, ErrDealAlreadyExists, "failed to create deal")
	}

	if len(input.Invoices) > 0 {
		invoices := make([]domain.Invoice, len(input.Invoices))
		for i, inv := range input.Invoices {
			invoices[i] = domain.Invoice{
				DealID:    deal.ID,
				Reference: inv.Reference,
				Amount:    inv.Amount,
				DueDate:   inv.DueDate,
			}
		}
		if err := dealRepo.CreateInvoices(ctx, invoices); err != nil {
			return fmt.Errorf("failed to create invoices: %w", err)
		}
	}

	if len(input.DeliveryDetails) > 0 {
		details := make([]domain.DeliveryDetail, len(input.DeliveryDetails))
		for i, d := range input.DeliveryDetails {
			details[i] = domain.DeliveryDetail{
				DealID:       deal.ID,
				Address:      d.Address,
				DeliveryDate: d.DeliveryDate,
				Notes:        d.Notes,
			}
		}
		if err := dealRepo.CreateDeliveryDetails(ctx, details); err != nil {
			return fmt.Errorf("failed to create delivery details: %w", err)
		}
	}
	return nil
}

func (s *ConversionService) loadDeal(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	deal, err := repository.NewDealRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload deal: %w", err)
	}
	return dealDTO(ctx, s.assignmentRepo, deal)
}

// uniqueViolation maps a unique index violation to conflict and wraps any
// other error
func uniqueViolation(err error, conflict *Error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return conflict
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// appendAudit writes one audit row with the transaction handle
func appendAudit(ctx context.Context, tx *gorm.DB, kind domain.EntityKind, entityID, userID uuid.UUID, action, detail string) error {
	err := repository.NewAuditLogRepository(tx).Append(ctx, &domain.AuditLog{
		EntityKind:  kind,
		EntityID:    entityID,
		UserID:      userID,
		Action:      action,
		Detail:      detail,
		PerformedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func blankToNil(s *string) *string {
	if isBlank(s) {
		return nil
	}
	return s
}
