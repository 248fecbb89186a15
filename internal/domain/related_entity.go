package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// RelatedEntityKind tags which record a proposal belongs to
type RelatedEntityKind string

const (
	RelatedEntityNone        RelatedEntityKind = ""
	RelatedEntityOpportunity RelatedEntityKind = "OPPORTUNITY"
	RelatedEntityDeal        RelatedEntityKind = "DEAL"
	RelatedEntityProject     RelatedEntityKind = "PROJECT"
)

// RelatedEntity is a tagged reference to a proposal's owning record. The zero
// value means the proposal is not attached to anything.
type RelatedEntity struct {
	Kind RelatedEntityKind
	ID   uuid.UUID
}

// IsNone reports whether the reference points nowhere
func (r RelatedEntity) IsNone() bool {
	return r.Kind == RelatedEntityNone
}

func (r RelatedEntity) String() string {
	if r.IsNone() {
		return "none"
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ParseRelatedEntity builds a reference from its wire form. An empty kind
// yields the zero reference; an unknown kind is an error.
func ParseRelatedEntity(kind string, id *uuid.UUID) (RelatedEntity, error) {
	switch RelatedEntityKind(kind) {
	case RelatedEntityNone:
		return RelatedEntity{}, nil
	case RelatedEntityOpportunity, RelatedEntityDeal, RelatedEntityProject:
		if id == nil || *id == uuid.Nil {
			return RelatedEntity{}, fmt.Errorf("related entity %s requires an id", kind)
		}
		return RelatedEntity{Kind: RelatedEntityKind(kind), ID: *id}, nil
	default:
		return RelatedEntity{}, fmt.Errorf("unknown related entity type %q", kind)
	}
}
