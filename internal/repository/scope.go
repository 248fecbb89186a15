package repository

import (
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/domain"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// DefaultPageSize is used when the caller does not ask for one
const DefaultPageSize = 20

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string // API field name
	Order SortOrder
}

// DefaultSortConfig returns a default sort configuration (createdAt DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{Field: "createdAt", Order: SortOrderDesc}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause maps an API sort field through a whitelist to a column.
// Unknown fields fall back to defaultColumn.
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}
	return column + " " + order
}

// AssignmentScope restricts a list query to rows the user is assigned to.
// A nil scope means the caller holds the global permission.
type AssignmentScope struct {
	UserID uuid.UUID
}

// ListOptions carries pagination, sorting and access scope for list queries
type ListOptions struct {
	Page     int
	PageSize int
	Sort     SortConfig
	Scope    *AssignmentScope
}

// Normalize clamps page and page size into their allowed ranges
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize > MaxPageSize {
		o.PageSize = MaxPageSize
	}
	if o.Sort.Field == "" {
		o.Sort = DefaultSortConfig()
	}
	return o
}

// Offset returns the row offset for the current page
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

var commonSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
}

// ApplyAssignmentScope constrains query to rows whose assignment join table
// contains the scoped user. Kinds without a join table match nothing.
func ApplyAssignmentScope(query *gorm.DB, kind domain.EntityKind, scope *AssignmentScope) *gorm.DB {
	if scope == nil {
		return query
	}
	t, ok := assignmentTables[kind]
	if !ok {
		return query.Where("1 = 0")
	}
	return query.Where("id IN (SELECT "+t.column+" FROM "+t.table+" WHERE user_id = ?)", scope.UserID)
}

func paginate(query *gorm.DB, opts ListOptions, fieldMap map[string]string) *gorm.DB {
	if fieldMap == nil {
		fieldMap = commonSortFields
	}
	return query.
		Order(BuildOrderClause(opts.Sort, fieldMap, "created_at")).
		Offset(opts.Offset()).
		Limit(opts.PageSize)
}
