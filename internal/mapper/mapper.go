package mapper

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func userIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

// ToLeadDTO converts Lead to LeadDTO
func ToLeadDTO(lead *domain.Lead, users []uuid.UUID) domain.LeadDTO {
	return domain.LeadDTO{
		ID:              lead.ID,
		Name:            lead.Name,
		Email:           lead.Email,
		Phone:           lead.Phone,
		CompanyName:     lead.CompanyName,
		Source:          lead.Source,
		Status:          lead.Status,
		Notes:           lead.Notes,
		LastContactDate: formatTimePtr(lead.LastContactDate),
		UserIDs:         userIDs(users),
		CreatedAt:       formatTime(lead.CreatedAt),
		UpdatedAt:       formatTime(lead.UpdatedAt),
	}
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client, users []uuid.UUID) domain.ClientDTO {
	return domain.ClientDTO{
		ID:          client.ID,
		ClientName:  client.ClientName,
		Email:       client.Email,
		Phone:       client.Phone,
		CompanyName: client.CompanyName,
		Status:      client.Status,
		UserIDs:     userIDs(users),
		CreatedAt:   formatTime(client.CreatedAt),
		UpdatedAt:   formatTime(client.UpdatedAt),
	}
}

// ToOpportunityDTO converts Opportunity to OpportunityDTO
func ToOpportunityDTO(opp *domain.Opportunity, users []uuid.UUID) domain.OpportunityDTO {
	return domain.OpportunityDTO{
		ID:             opp.ID,
		LeadID:         opp.LeadID,
		ClientID:       opp.ClientID,
		Name:           opp.Name,
		Stage:          opp.Stage,
		EstimatedValue: opp.EstimatedValue,
		Profit:         opp.Profit,
		UserIDs:        userIDs(users),
		CreatedAt:      formatTime(opp.CreatedAt),
		UpdatedAt:      formatTime(opp.UpdatedAt),
	}
}

// ToDealDTO converts Deal to DealDTO, including preloaded child rows
func ToDealDTO(deal *domain.Deal, users []uuid.UUID) domain.DealDTO {
	dto := domain.DealDTO{
		ID:              deal.ID,
		Name:            deal.Name,
		CompanyName:     deal.CompanyName,
		Price:           deal.Price,
		Stage:           deal.Stage,
		CancelledReason: deal.CancelledReason,
		LeadID:          deal.LeadID,
		ClientID:        deal.ClientID,
		OpportunityID:   deal.OpportunityID,
		Invoices:        make([]domain.InvoiceDTO, 0, len(deal.Invoices)),
		DeliveryDetails: make([]domain.DeliveryDetailDTO, 0, len(deal.DeliveryDetails)),
		UserIDs:         userIDs(users),
		CreatedAt:       formatTime(deal.CreatedAt),
		UpdatedAt:       formatTime(deal.UpdatedAt),
	}
	for _, inv := range deal.Invoices {
		dto.Invoices = append(dto.Invoices, domain.InvoiceDTO{
			ID:        inv.ID,
			Reference: inv.Reference,
			Amount:    inv.Amount,
			DueDate:   formatTimePtr(inv.DueDate),
		})
	}
	for _, d := range deal.DeliveryDetails {
		dto.DeliveryDetails = append(dto.DeliveryDetails, domain.DeliveryDetailDTO{
			ID:           d.ID,
			Address:      d.Address,
			DeliveryDate: formatTimePtr(d.DeliveryDate),
			Notes:        d.Notes,
		})
	}
	return dto
}

// ToProjectDTO converts Project to ProjectDTO
func ToProjectDTO(project *domain.Project) domain.ProjectDTO {
	return domain.ProjectDTO{
		ID:        project.ID,
		Name:      project.Name,
		DealID:    project.DealID,
		ClientID:  project.ClientID,
		Status:    project.Status,
		CreatedAt: formatTime(project.CreatedAt),
		UpdatedAt: formatTime(project.UpdatedAt),
	}
}

// ToProposalDTO converts Proposal to ProposalDTO. Contents and finance table
// are included when they were preloaded.
func ToProposalDTO(proposal *domain.Proposal, users []uuid.UUID) domain.ProposalDTO {
	dto := domain.ProposalDTO{
		ID:              proposal.ID,
		Title:           proposal.Title,
		Version:         proposal.Version,
		Type:            proposal.Type,
		Reference:       proposal.Reference,
		Status:          proposal.Status,
		RejectionReason: proposal.RejectionReason,
		UserIDs:         userIDs(users),
		CreatedAt:       formatTime(proposal.CreatedAt),
		UpdatedAt:       formatTime(proposal.UpdatedAt),
	}

	if ref := proposal.Related(); !ref.IsNone() {
		dto.Related = &domain.RelatedEntityDTO{Type: ref.Kind, ID: ref.ID}
	}

	for _, c := range proposal.Contents {
		dto.Contents = append(dto.Contents, domain.ProposalContentDTO{
			ID:       c.ID,
			Position: c.Position,
			Heading:  c.Heading,
			Body:     c.Body,
		})
	}

	if ft := proposal.FinanceTable; ft != nil {
		table := &domain.FinanceTableDTO{
			Rows:      make([]domain.FinanceRowDTO, 0, len(ft.Rows)),
			Discount:  ft.Discount,
			TaxRate:   ft.TaxRate,
			Subtotal:  ft.Subtotal,
			TaxAmount: ft.TaxAmount,
			Total:     ft.Total,
		}
		for _, r := range ft.Rows {
			table.Rows = append(table.Rows, domain.FinanceRowDTO{
				Position:    r.Position,
				Description: r.Description,
				Quantity:    r.Quantity,
				UnitPrice:   r.UnitPrice,
				LineTotal:   r.LineTotal,
			})
		}
		dto.FinanceTable = table
	}

	return dto
}

// ToProposalLogDTO converts ProposalLog to ProposalLogDTO
func ToProposalLogDTO(log *domain.ProposalLog) domain.ProposalLogDTO {
	return domain.ProposalLogDTO{
		ID:        log.ID,
		UserID:    log.UserID,
		Action:    log.Action,
		CreatedAt: formatTime(log.CreatedAt),
	}
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:         notification.ID,
		EntityKind: notification.EntityKind,
		EntityID:   notification.EntityID,
		Type:       notification.Type,
		Title:      notification.Title,
		Body:       notification.Body,
		ReadState:  notification.ReadState,
		CreatedAt:  formatTime(notification.CreatedAt),
	}
}

// ToAuditLogDTO converts AuditLog to AuditLogDTO
func ToAuditLogDTO(log *domain.AuditLog) domain.AuditLogDTO {
	return domain.AuditLogDTO{
		ID:          log.ID,
		EntityKind:  log.EntityKind,
		EntityID:    log.EntityID,
		UserID:      log.UserID,
		Action:      log.Action,
		Detail:      log.Detail,
		PerformedAt: formatTime(log.PerformedAt),
	}
}

// NewPaginatedResponse wraps one page of results
func NewPaginatedResponse(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// BuildFinanceTable prices each row and computes the table totals.
// Discount is subtracted from the subtotal before tax; the total never goes
// below zero. Amounts are rounded to two decimals.
func BuildFinanceTable(proposalID uuid.UUID, rows []domain.FinanceRowInput, discount, taxRate float64) *domain.FinanceTable {
	table := &domain.FinanceTable{
		ProposalID: proposalID,
		Discount:   round2(discount),
		TaxRate:    taxRate,
		Rows:       make([]domain.FinanceRow, 0, len(rows)),
	}

	var subtotal float64
	for i, r := range rows {
		lineTotal := round2(r.Quantity * r.UnitPrice)
		subtotal += lineTotal
		table.Rows = append(table.Rows, domain.FinanceRow{
			Position:    i,
			Description: r.Description,
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			LineTotal:   lineTotal,
		})
	}

	table.Subtotal = round2(subtotal)
	taxable := math.Max(table.Subtotal-table.Discount, 0)
	table.TaxAmount = round2(taxable * taxRate / 100)
	table.Total = round2(taxable + table.TaxAmount)
	return table
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
