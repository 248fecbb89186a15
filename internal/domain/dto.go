package domain

import (
	"time"

	"github.com/google/uuid"
)

// DTOs

type LeadDTO struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	Email           *string     `json:"email,omitempty"`
	Phone           *string     `json:"phone,omitempty"`
	CompanyName     string      `json:"companyName,omitempty"`
	Source          string      `json:"source,omitempty"`
	Status          LeadStatus  `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	LastContactDate *string     `json:"lastContactDate,omitempty"`
	UserIDs         []uuid.UUID `json:"userIds"`
	CreatedAt       string      `json:"createdAt"`
	UpdatedAt       string      `json:"updatedAt"`
}

type ClientDTO struct {
	ID          uuid.UUID    `json:"id"`
	ClientName  string       `json:"clientName"`
	Email       *string      `json:"email,omitempty"`
	Phone       *string      `json:"phone,omitempty"`
	CompanyName string       `json:"companyName,omitempty"`
	Status      ClientStatus `json:"status"`
	UserIDs     []uuid.UUID  `json:"userIds"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

type OpportunityDTO struct {
	ID             uuid.UUID        `json:"id"`
	LeadID         *uuid.UUID       `json:"leadId,omitempty"`
	ClientID       *uuid.UUID       `json:"clientId,omitempty"`
	Name           string           `json:"name"`
	Stage          OpportunityStage `json:"stage"`
	EstimatedValue float64          `json:"estimatedValue"`
	Profit         float64          `json:"profit"`
	UserIDs        []uuid.UUID      `json:"userIds"`
	CreatedAt      string           `json:"createdAt"`
	UpdatedAt      string           `json:"updatedAt"`
}

type InvoiceDTO struct {
	ID        uuid.UUID `json:"id"`
	Reference string    `json:"reference,omitempty"`
	Amount    float64   `json:"amount"`
	DueDate   *string   `json:"dueDate,omitempty"`
}

type DeliveryDetailDTO struct {
	ID           uuid.UUID `json:"id"`
	Address      string    `json:"address,omitempty"`
	DeliveryDate *string   `json:"deliveryDate,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

type DealDTO struct {
	ID              uuid.UUID           `json:"id"`
	Name            string              `json:"name"`
	CompanyName     string              `json:"companyName"`
	Price           float64             `json:"price"`
	Stage           DealStage           `json:"stage"`
	CancelledReason *string             `json:"cancelledReason,omitempty"`
	LeadID          *uuid.UUID          `json:"leadId,omitempty"`
	ClientID        *uuid.UUID          `json:"clientId,omitempty"`
	OpportunityID   *uuid.UUID          `json:"opportunityId,omitempty"`
	Invoices        []InvoiceDTO        `json:"invoices"`
	DeliveryDetails []DeliveryDetailDTO `json:"deliveryDetails"`
	UserIDs         []uuid.UUID         `json:"userIds"`
	CreatedAt       string              `json:"createdAt"`
	UpdatedAt       string              `json:"updatedAt"`
}

type ProjectDTO struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	DealID    *uuid.UUID    `json:"dealId,omitempty"`
	ClientID  *uuid.UUID    `json:"clientId,omitempty"`
	Status    ProjectStatus `json:"status"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

type RelatedEntityDTO struct {
	Type RelatedEntityKind `json:"type"`
	ID   uuid.UUID         `json:"id"`
}

type ProposalContentDTO struct {
	ID       uuid.UUID `json:"id"`
	Position int       `json:"position"`
	Heading  string    `json:"heading,omitempty"`
	Body     string    `json:"body,omitempty"`
}

type FinanceRowDTO struct {
	Position    int     `json:"position"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

type FinanceTableDTO struct {
	Rows      []FinanceRowDTO `json:"rows"`
	Discount  float64         `json:"discount"`
	TaxRate   float64         `json:"taxRate"`
	Subtotal  float64         `json:"subtotal"`
	TaxAmount float64         `json:"taxAmount"`
	Total     float64         `json:"total"`
}

type ProposalDTO struct {
	ID              uuid.UUID            `json:"id"`
	Related         *RelatedEntityDTO    `json:"related,omitempty"`
	Title           string               `json:"title"`
	Version         int                  `json:"version"`
	Type            string               `json:"type,omitempty"`
	Reference       string               `json:"reference"`
	Status          ProposalStatus       `json:"status"`
	RejectionReason *string              `json:"rejectionReason,omitempty"`
	UserIDs         []uuid.UUID          `json:"userIds"`
	Contents        []ProposalContentDTO `json:"contents,omitempty"`
	FinanceTable    *FinanceTableDTO     `json:"financeTable,omitempty"`
	CreatedAt       string               `json:"createdAt"`
	UpdatedAt       string               `json:"updatedAt"`
}

type ProposalLogDTO struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	Action    ProposalAction `json:"action"`
	CreatedAt string         `json:"createdAt"`
}

type NotificationDTO struct {
	ID         uuid.UUID        `json:"id"`
	EntityKind EntityKind       `json:"entityKind,omitempty"`
	EntityID   *uuid.UUID       `json:"entityId,omitempty"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	ReadState  ReadState        `json:"readState"`
	CreatedAt  string           `json:"createdAt"`
}

type AuditLogDTO struct {
	ID          uuid.UUID  `json:"id"`
	EntityKind  EntityKind `json:"entityKind"`
	EntityID    uuid.UUID  `json:"entityId"`
	UserID      uuid.UUID  `json:"userId"`
	Action      string     `json:"action"`
	Detail      string     `json:"detail,omitempty"`
	PerformedAt string     `json:"performedAt"`
}

type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

// AuthUserDTO describes the authenticated caller
type AuthUserDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role,omitempty"`
	Initials    string    `json:"initials"`
	Permissions []string  `json:"permissions"`
}

// PaginatedResponse wraps one page of a list endpoint
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request types

type CreateLeadRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Email       *string     `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       *string     `json:"phone,omitempty" validate:"omitempty,max=50"`
	CompanyName string      `json:"companyName,omitempty" validate:"max=200"`
	Source      string      `json:"source,omitempty" validate:"max=100"`
	Notes       string      `json:"notes,omitempty"`
	Users       []uuid.UUID `json:"users,omitempty"`
}

type InvoiceInput struct {
	Reference string     `json:"reference,omitempty" validate:"max=100"`
	Amount    float64    `json:"amount" validate:"gte=0"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

type DeliveryDetailInput struct {
	Address      string     `json:"address,omitempty" validate:"max=500"`
	DeliveryDate *time.Time `json:"deliveryDate,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// DealInput holds the deal fields shared by every deal-producing operation
type DealInput struct {
	Name            string                `json:"name" validate:"required,max=200"`
	CompanyName     string                `json:"companyName" validate:"required,max=200"`
	Price           float64               `json:"price" validate:"gte=0"`
	Stage           DealStage             `json:"stage" validate:"required,oneof=DRAFT IN_PROGRESS NEGOTIATION CLOSED CANCELLED"`
	CancelledReason *string               `json:"cancelledReason,omitempty" validate:"omitempty,max=500"`
	Invoices        []InvoiceInput        `json:"invoices,omitempty" validate:"dive"`
	DeliveryDetails []DeliveryDetailInput `json:"deliveryDetails,omitempty" validate:"dive"`
	Users           []uuid.UUID           `json:"users,omitempty"`
}

type ConvertLeadToDealRequest struct {
	DealInput
	OpportunityID *uuid.UUID `json:"opportunityId,omitempty"`
}

// NewLeadInput describes a lead created inline while creating a deal
type NewLeadInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	CompanyName string  `json:"companyName,omitempty" validate:"max=200"`
	Source      string  `json:"source,omitempty" validate:"max=100"`
}

type CreateDealRequest struct {
	DealInput
	LeadID   *uuid.UUID    `json:"leadId,omitempty"`
	Lead     *NewLeadInput `json:"lead,omitempty"`
	ClientID *uuid.UUID    `json:"clientId,omitempty"`
}

type UpdateDealRequest struct {
	Name            string       `json:"name" validate:"required,max=200"`
	CompanyName     string       `json:"companyName" validate:"required,max=200"`
	Price           float64      `json:"price" validate:"gte=0"`
	Stage           DealStage    `json:"stage" validate:"required,oneof=DRAFT IN_PROGRESS NEGOTIATION CLOSED CANCELLED"`
	CancelledReason *string      `json:"cancelledReason,omitempty" validate:"omitempty,max=500"`
	Users           *[]uuid.UUID `json:"users,omitempty"`
}

type CreateOpportunityRequest struct {
	LeadID         *uuid.UUID       `json:"leadId,omitempty"`
	ClientID       *uuid.UUID       `json:"clientId,omitempty"`
	Name           string           `json:"name" validate:"required,max=200"`
	Stage          OpportunityStage `json:"stage,omitempty" validate:"omitempty,oneof=DISCOVERY PROPOSAL NEGOTIATION WON LOST"`
	EstimatedValue float64          `json:"estimatedValue" validate:"gte=0"`
	Profit         float64          `json:"profit"`
	Users          []uuid.UUID      `json:"users,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type AssignUsersRequest struct {
	Users []uuid.UUID `json:"users" validate:"required"`
}

type CreateProposalRequest struct {
	RelatedEntityType string      `json:"relatedEntityType,omitempty" validate:"omitempty,oneof=OPPORTUNITY DEAL PROJECT"`
	RelatedEntityID   *uuid.UUID  `json:"relatedEntityId,omitempty"`
	Title             string      `json:"title" validate:"required,max=200"`
	Version           int         `json:"version" validate:"gte=0"`
	Type              string      `json:"type,omitempty" validate:"max=50"`
	Reference         string      `json:"reference" validate:"required,max=100"`
	Users             []uuid.UUID `json:"users,omitempty"`
}

type UpdateProposalRequest struct {
	Title     string `json:"title" validate:"required,max=200"`
	Version   int    `json:"version" validate:"gte=0"`
	Type      string `json:"type,omitempty" validate:"max=50"`
	Reference string `json:"reference" validate:"required,max=100"`
}

type RejectProposalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ProposalContentInput struct {
	Heading string `json:"heading,omitempty" validate:"max=200"`
	Body    string `json:"body,omitempty"`
}

type ReplaceProposalContentRequest struct {
	Sections []ProposalContentInput `json:"sections" validate:"required,dive"`
}

type FinanceRowInput struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

type UpsertFinanceTableRequest struct {
	Rows     []FinanceRowInput `json:"rows" validate:"required,dive"`
	Discount float64           `json:"discount" validate:"gte=0"`
	TaxRate  float64           `json:"taxRate" validate:"gte=0,lte=100"`
}
