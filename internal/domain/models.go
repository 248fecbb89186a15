package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate assigns an ID when the caller did not set one.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// LeadStatus represents where a lead is in the intake funnel
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "NEW"
	LeadStatusContacted    LeadStatus = "CONTACTED"
	LeadStatusQualified    LeadStatus = "QUALIFIED"
	LeadStatusDisqualified LeadStatus = "DISQUALIFIED"
	LeadStatusConverted    LeadStatus = "CONVERTED"
	LeadStatusLost         LeadStatus = "LOST"
)

// Lead is a prospective customer captured by intake
type Lead struct {
	BaseModel
	Name            string     `gorm:"type:varchar(200);not null"`
	Email           *string    `gorm:"type:varchar(255);uniqueIndex:idx_leads_email"`
	Phone           *string    `gorm:"type:varchar(50)"`
	CompanyName     string     `gorm:"type:varchar(200);column:company_name"`
	Source          string     `gorm:"type:varchar(100)"`
	Status          LeadStatus `gorm:"type:varchar(20);not null;default:'NEW';index"`
	Notes           string     `gorm:"type:text"`
	LastContactDate *time.Time `gorm:"column:last_contact_date"`
	Users           []User     `gorm:"many2many:lead_users;joinForeignKey:LeadID;joinReferences:UserID"`
}

// OpportunityStage represents the sales stage of an opportunity
type OpportunityStage string

const (
	OpportunityStageDiscovery   OpportunityStage = "DISCOVERY"
	OpportunityStageProposal    OpportunityStage = "PROPOSAL"
	OpportunityStageNegotiation OpportunityStage = "NEGOTIATION"
	OpportunityStageWon         OpportunityStage = "WON"
	OpportunityStageLost        OpportunityStage = "LOST"
	OpportunityStageConverted   OpportunityStage = "CONVERTED"
)

// Opportunity is a qualified sales prospect, optionally originating from a lead
type Opportunity struct {
	BaseModel
	LeadID         *uuid.UUID       `gorm:"type:uuid;index"`
	Lead           *Lead            `gorm:"foreignKey:LeadID"`
	ClientID       *uuid.UUID       `gorm:"type:uuid;index"`
	Client         *Client          `gorm:"foreignKey:ClientID"`
	Name           string           `gorm:"type:varchar(200);not null"`
	Stage          OpportunityStage `gorm:"type:varchar(20);not null;default:'DISCOVERY';index"`
	EstimatedValue float64          `gorm:"type:decimal(15,2);not null;default:0;column:estimated_value"`
	Profit         float64          `gorm:"type:decimal(15,2);not null;default:0"`
	Users          []User           `gorm:"many2many:opportunity_users;joinForeignKey:OpportunityID;joinReferences:UserID"`
}

// ClientStatus represents the account status of a client
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
)

// Client is a customer account. Email is unique when present; phone is
// unique among clients that have no email.
type Client struct {
	BaseModel
	ClientName  string       `gorm:"type:varchar(200);not null;column:client_name"`
	Email       *string      `gorm:"type:varchar(255);uniqueIndex:idx_clients_email"`
	Phone       *string      `gorm:"type:varchar(50);index:idx_clients_phone,unique,where:email IS NULL"`
	CompanyName string       `gorm:"type:varchar(200);column:company_name"`
	Status      ClientStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	Users       []User       `gorm:"many2many:client_users;joinForeignKey:ClientID;joinReferences:UserID"`
}

// DealStage represents the pipeline stage of a deal
type DealStage string

const (
	DealStageDraft       DealStage = "DRAFT"
	DealStageInProgress  DealStage = "IN_PROGRESS"
	DealStageNegotiation DealStage = "NEGOTIATION"
	DealStageClosed      DealStage = "CLOSED"
	DealStageCancelled   DealStage = "CANCELLED"
	DealStageConverted   DealStage = "CONVERTED"
)

// IsValid checks if the DealStage is a valid enum value
func (s DealStage) IsValid() bool {
	switch s {
	case DealStageDraft, DealStageInProgress, DealStageNegotiation,
		DealStageClosed, DealStageCancelled, DealStageConverted:
		return true
	}
	return false
}

// Deal is a priced sale tied to a client. Name and company name are unique
// together among deals that are not soft-deleted.
type Deal struct {
	BaseModel
	Name            string           `gorm:"type:varchar(200);not null;index:idx_deals_name_company,unique,where:deleted_at IS NULL"`
	CompanyName     string           `gorm:"type:varchar(200);not null;column:company_name;index:idx_deals_name_company,unique,where:deleted_at IS NULL"`
	Price           float64          `gorm:"type:decimal(15,2);not null;default:0"`
	Stage           DealStage        `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	CancelledReason *string          `gorm:"type:varchar(500);column:cancelled_reason"`
	LeadID          *uuid.UUID       `gorm:"type:uuid;index"`
	Lead            *Lead            `gorm:"foreignKey:LeadID"`
	ClientID        *uuid.UUID       `gorm:"type:uuid;index"`
	Client          *Client          `gorm:"foreignKey:ClientID"`
	OpportunityID   *uuid.UUID       `gorm:"type:uuid;index"`
	Opportunity     *Opportunity     `gorm:"foreignKey:OpportunityID"`
	Invoices        []Invoice        `gorm:"foreignKey:DealID"`
	DeliveryDetails []DeliveryDetail `gorm:"foreignKey:DealID"`
	Users           []User           `gorm:"many2many:deal_users;joinForeignKey:DealID;joinReferences:UserID"`
	DeletedAt       gorm.DeletedAt   `gorm:"index"`
}

// Invoice is a billing line attached to a deal
type Invoice struct {
	BaseModel
	DealID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Reference string     `gorm:"type:varchar(100)"`
	Amount    float64    `gorm:"type:decimal(15,2);not null;default:0"`
	DueDate   *time.Time `gorm:"column:due_date"`
}

// DeliveryDetail describes where and when a deal is delivered
type DeliveryDetail struct {
	BaseModel
	DealID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Address      string     `gorm:"type:varchar(500)"`
	DeliveryDate *time.Time `gorm:"column:delivery_date"`
	Notes        string     `gorm:"type:text"`
}

// ProjectStatus represents the status of a project
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "ACTIVE"
	ProjectStatusArchived ProjectStatus = "ARCHIVED"
)

// Project is the delivery phase of a converted deal
type Project struct {
	BaseModel
	Name     string        `gorm:"type:varchar(200);not null"`
	DealID   *uuid.UUID    `gorm:"type:uuid;index"`
	Deal     *Deal         `gorm:"foreignKey:DealID"`
	ClientID *uuid.UUID    `gorm:"type:uuid;index"`
	Status   ProjectStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
}

// ProposalStatus represents the approval state of a proposal
type ProposalStatus string

const (
	ProposalStatusWaitingApproval ProposalStatus = "WAITING_APPROVAL"
	ProposalStatusApproved        ProposalStatus = "APPROVED"
	ProposalStatusRejected        ProposalStatus = "REJECTED"
	ProposalStatusArchived        ProposalStatus = "ARCHIVED"
)

// Proposal is a commercial offer attached to an opportunity, deal or project
type Proposal struct {
	BaseModel
	RelatedEntityType RelatedEntityKind `gorm:"type:varchar(20);column:related_entity_type;index:idx_proposals_related"`
	RelatedEntityID   *uuid.UUID        `gorm:"type:uuid;column:related_entity_id;index:idx_proposals_related"`
	Title             string            `gorm:"type:varchar(200);not null"`
	Version           int               `gorm:"not null;default:1"`
	Type              string            `gorm:"type:varchar(50)"`
	Reference         string            `gorm:"type:varchar(100);not null;uniqueIndex:idx_proposals_reference"`
	Status            ProposalStatus    `gorm:"type:varchar(30);not null;default:'WAITING_APPROVAL';index"`
	RejectionReason   *string           `gorm:"type:varchar(500);column:rejection_reason"`
	Logs              []ProposalLog     `gorm:"foreignKey:ProposalID"`
	Contents          []ProposalContent `gorm:"foreignKey:ProposalID"`
	FinanceTable      *FinanceTable     `gorm:"foreignKey:ProposalID"`
	Users             []User            `gorm:"many2many:proposal_users;joinForeignKey:ProposalID;joinReferences:UserID"`
}

// Related returns the proposal's owning record as a tagged reference
func (p *Proposal) Related() RelatedEntity {
	if p.RelatedEntityType == RelatedEntityNone || p.RelatedEntityID == nil {
		return RelatedEntity{}
	}
	return RelatedEntity{Kind: p.RelatedEntityType, ID: *p.RelatedEntityID}
}

// SetRelated stores a tagged reference on the proposal
func (p *Proposal) SetRelated(ref RelatedEntity) {
	if ref.IsNone() {
		p.RelatedEntityType = RelatedEntityNone
		p.RelatedEntityID = nil
		return
	}
	id := ref.ID
	p.RelatedEntityType = ref.Kind
	p.RelatedEntityID = &id
}

// ProposalAction identifies what a proposal log row records
type ProposalAction string

const (
	ProposalActionCreated         ProposalAction = "PROPOSAL_CREATED"
	ProposalActionUpdated         ProposalAction = "PROPOSAL_UPDATED"
	ProposalActionApproved        ProposalAction = "PROPOSAL_APPROVED"
	ProposalActionRejected        ProposalAction = "PROPOSAL_REJECTED"
	ProposalActionWaitingApproval ProposalAction = "PROPOSAL_WAITING_APPROVAL"
	ProposalActionUsersUpdated    ProposalAction = "PROPOSAL_USERS_UPDATED"
	ProposalActionContentUpdated  ProposalAction = "PROPOSAL_CONTENT_UPDATED"
	ProposalActionFinanceUpdated  ProposalAction = "PROPOSAL_FINANCE_UPDATED"
	ProposalActionArchived        ProposalAction = "PROPOSAL_ARCHIVED"
)

// ProposalLog is an append-only audit row for a proposal. Rows are never
// updated or deleted.
type ProposalLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ProposalID uuid.UUID      `gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null"`
	Action     ProposalAction `gorm:"type:varchar(50);not null"`
	CreatedAt  time.Time      `gorm:"not null;index"`
}

func (l *ProposalLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ProposalContent is one ordered section of a proposal document
type ProposalContent struct {
	BaseModel
	ProposalID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position   int       `gorm:"not null;default:0"`
	Heading    string    `gorm:"type:varchar(200)"`
	Body       string    `gorm:"type:text"`
}

// FinanceTable holds the priced lines of a proposal
type FinanceTable struct {
	BaseModel
	ProposalID  uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex"`
	Discount    float64      `gorm:"type:decimal(15,2);not null;default:0"`
	TaxRate     float64      `gorm:"type:decimal(5,2);not null;default:0;column:tax_rate"`
	Subtotal    float64      `gorm:"type:decimal(15,2);not null;default:0"`
	TaxAmount   float64      `gorm:"type:decimal(15,2);not null;default:0;column:tax_amount"`
	Total       float64      `gorm:"type:decimal(15,2);not null;default:0"`
	Rows        []FinanceRow `gorm:"foreignKey:FinanceTableID"`
}

// FinanceRow is a single priced line in a finance table
type FinanceRow struct {
	BaseModel
	FinanceTableID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position       int       `gorm:"not null;default:0"`
	Description    string    `gorm:"type:varchar(500);not null"`
	Quantity       float64   `gorm:"type:decimal(15,2);not null;default:1"`
	UnitPrice      float64   `gorm:"type:decimal(15,2);not null;default:0;column:unit_price"`
	LineTotal      float64   `gorm:"type:decimal(15,2);not null;default:0;column:line_total"`
}

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeAssigned         NotificationType = "ASSIGNED"
	NotificationTypeProposalApproved NotificationType = "PROPOSAL_APPROVED"
	NotificationTypeProposalRejected NotificationType = "PROPOSAL_REJECTED"
)

// ReadState tracks how far a user has engaged with a notification. It only
// moves forward: UNREAD, then READ, then CLICKED.
type ReadState string

const (
	ReadStateUnread  ReadState = "UNREAD"
	ReadStateRead    ReadState = "READ"
	ReadStateClicked ReadState = "CLICKED"
)

func (s ReadState) rank() int {
	switch s {
	case ReadStateRead:
		return 1
	case ReadStateClicked:
		return 2
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is a forward transition
func (s ReadState) Advances(next ReadState) bool {
	return next.rank() > s.rank()
}

// Notification represents a user notification
type Notification struct {
	BaseModel
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	ActorID    *uuid.UUID       `gorm:"type:uuid;column:actor_id"`
	EntityKind EntityKind       `gorm:"type:varchar(20);column:entity_kind"`
	EntityID   *uuid.UUID       `gorm:"type:uuid;column:entity_id"`
	Type       NotificationType `gorm:"type:varchar(50);not null"`
	Title      string           `gorm:"type:varchar(200);not null"`
	Body       string           `gorm:"type:varchar(500);not null"`
	ReadState  ReadState        `gorm:"type:varchar(10);not null;default:'UNREAD';column:read_state;index"`
	ReadAt     *time.Time       `gorm:"column:read_at"`
	ClickedAt  *time.Time       `gorm:"column:clicked_at"`
}

// AuditLog records lifecycle events on leads, opportunities, deals, clients
// and projects. Proposals use ProposalLog instead.
type AuditLog struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EntityKind  EntityKind `gorm:"type:varchar(20);not null;column:entity_kind;index:idx_audit_logs_entity"`
	EntityID    uuid.UUID  `gorm:"type:uuid;not null;column:entity_id;index:idx_audit_logs_entity"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null"`
	Action      string     `gorm:"type:varchar(50);not null"`
	Detail      string     `gorm:"type:text"`
	PerformedAt time.Time  `gorm:"not null;column:performed_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Audit actions for non-proposal entities
const (
	AuditActionLeadCreated                = "LEAD_CREATED"
	AuditActionDealCreated                = "DEAL_CREATED"
	AuditActionDealCreatedFromLead        = "DEAL_CREATED_FROM_LEAD"
	AuditActionDealCreatedFromOpportunity = "DEAL_CREATED_FROM_OPPORTUNITY"
	AuditActionDealUpdated                = "DEAL_UPDATED"
	AuditActionOpportunityCreated         = "OPPORTUNITY_CREATED"
	AuditActionOpportunityFromLead        = "OPPORTUNITY_CREATED_FROM_LEAD"
	AuditActionProjectCreatedFromDeal     = "PROJECT_CREATED_FROM_DEAL"
	AuditActionProjectArchived            = "PROJECT_ARCHIVED"
	AuditActionUsersUpdated               = "USERS_UPDATED"
)

// User represents a user in the system
type User struct {
	BaseModel
	Email       string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	DisplayName string     `gorm:"type:varchar(200);column:display_name"`
	RoleID      *uuid.UUID `gorm:"type:uuid;index"`
	Role        *Role      `gorm:"foreignKey:RoleID"`
	IsActive    bool       `gorm:"not null;default:true;column:is_active"`
}

// Role groups a set of permission strings
type Role struct {
	BaseModel
	Name        string           `gorm:"type:varchar(100);not null;uniqueIndex"`
	Permissions []RolePermission `gorm:"foreignKey:RoleID"`
}

// RolePermission grants one permission to a role
type RolePermission struct {
	RoleID     uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Permission Permission `gorm:"type:varchar(100);primaryKey"`
}

// AllModels lists every persisted model in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&Role{},
		&RolePermission{},
		&User{},
		&Lead{},
		&Client{},
		&Opportunity{},
		&Deal{},
		&Invoice{},
		&DeliveryDetail{},
		&Project{},
		&Proposal{},
		&ProposalLog{},
		&ProposalContent{},
		&FinanceTable{},
		&FinanceRow{},
		&Notification{},
		&AuditLog{},
	}
}
