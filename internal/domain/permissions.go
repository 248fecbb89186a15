package domain

// EntityKind names a record type that can carry user assignments or audit rows
type EntityKind string

const (
	EntityLead        EntityKind = "LEAD"
	EntityOpportunity EntityKind = "OPPORTUNITY"
	EntityDeal        EntityKind = "DEAL"
	EntityClient      EntityKind = "CLIENT"
	EntityProposal    EntityKind = "PROPOSAL"
	EntityProject     EntityKind = "PROJECT"
)

// Permission is a capability string held by a role
type Permission string

const (
	PermissionViewGlobalLeads         Permission = "VIEW_GLOBAL_LEADS"
	PermissionViewOwnLeads            Permission = "VIEW_OWN_LEADS"
	PermissionEditGlobalLeads         Permission = "EDIT_GLOBAL_LEADS"
	PermissionViewGlobalOpportunities Permission = "VIEW_GLOBAL_OPPORTUNITIES"
	PermissionViewOwnOpportunities    Permission = "VIEW_OWN_OPPORTUNITIES"
	PermissionEditGlobalOpportunities Permission = "EDIT_GLOBAL_OPPORTUNITIES"
	PermissionViewGlobalDeals         Permission = "VIEW_GLOBAL_DEALS"
	PermissionViewOwnDeals            Permission = "VIEW_OWN_DEALS"
	PermissionEditGlobalDeals         Permission = "EDIT_GLOBAL_DEALS"
	PermissionViewGlobalClients       Permission = "VIEW_GLOBAL_CLIENTS"
	PermissionViewOwnClients          Permission = "VIEW_OWN_CLIENTS"
	PermissionEditGlobalClients       Permission = "EDIT_GLOBAL_CLIENTS"
	PermissionViewGlobalProposals     Permission = "VIEW_GLOBAL_PROPOSALS"
	PermissionViewOwnProposals        Permission = "VIEW_OWN_PROPOSALS"
	PermissionEditGlobalProposals     Permission = "EDIT_GLOBAL_PROPOSALS"
	PermissionViewGlobalProjects      Permission = "VIEW_GLOBAL_PROJECTS"
	PermissionEditGlobalProjects      Permission = "EDIT_GLOBAL_PROJECTS"
)

// EntityPermissions is the permission triple that scopes access to one kind
type EntityPermissions struct {
	ViewGlobal Permission
	ViewOwn    Permission
	EditGlobal Permission
}

var entityPermissions = map[EntityKind]EntityPermissions{
	EntityLead:        {PermissionViewGlobalLeads, PermissionViewOwnLeads, PermissionEditGlobalLeads},
	EntityOpportunity: {PermissionViewGlobalOpportunities, PermissionViewOwnOpportunities, PermissionEditGlobalOpportunities},
	EntityDeal:        {PermissionViewGlobalDeals, PermissionViewOwnDeals, PermissionEditGlobalDeals},
	EntityClient:      {PermissionViewGlobalClients, PermissionViewOwnClients, PermissionEditGlobalClients},
	EntityProposal:    {PermissionViewGlobalProposals, PermissionViewOwnProposals, PermissionEditGlobalProposals},
	EntityProject:     {ViewGlobal: PermissionViewGlobalProjects, EditGlobal: PermissionEditGlobalProjects},
}

// PermissionsFor returns the permission triple for an entity kind
func PermissionsFor(kind EntityKind) EntityPermissions {
	return entityPermissions[kind]
}

// AllPermissions lists every known permission, used to seed an admin role
func AllPermissions() []Permission {
	perms := make([]Permission, 0, len(entityPermissions)*3)
	for _, kind := range []EntityKind{EntityLead, EntityOpportunity, EntityDeal, EntityClient, EntityProposal, EntityProject} {
		p := entityPermissions[kind]
		perms = append(perms, p.ViewGlobal)
		if p.ViewOwn != "" {
			perms = append(perms, p.ViewOwn)
		}
		perms = append(perms, p.EditGlobal)
	}
	return perms
}
