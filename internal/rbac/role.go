package rbac

// Role is a member's role within a business account, ordered by privilege:
// owner > admin > editor.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor:
		return true
	}
	return false
}

// Invitable reports whether r may be granted through an invitation.
// Ownership is never granted by invitation.
func (r Role) Invitable() bool {
	return r == RoleAdmin || r == RoleEditor
}

// Permission is an atomic capability gating one user-facing action.
type Permission string

const (
	PermViewWebsites         Permission = "view_websites"
	PermManageWebsites       Permission = "manage_websites"
	PermViewKnowledgeBases   Permission = "view_knowledge_bases"
	PermEditKnowledgeBases   Permission = "edit_knowledge_bases"
	PermDeleteKnowledgeBases Permission = "delete_knowledge_bases"
	PermViewConversations    Permission = "view_conversations"
	PermDeleteConversations  Permission = "delete_conversations"
	PermViewTeam             Permission = "view_team"
	PermManageTeam           Permission = "manage_team"
	PermManageBilling        Permission = "manage_billing"
	PermDeleteAccount        Permission = "delete_account"
	PermViewAuditLogs        Permission = "view_audit_logs"
)

// rolePermissions maps each role to its allowed permissions.
var rolePermissions = map[Role][]Permission{
	RoleOwner: {
		PermViewWebsites,
		PermManageWebsites,
		PermViewKnowledgeBases,
		PermEditKnowledgeBases,
		PermDeleteKnowledgeBases,
		PermViewConversations,
		PermDeleteConversations,
		PermViewTeam,
		PermManageTeam,
		PermManageBilling,
		PermDeleteAccount,
		PermViewAuditLogs,
	},
	RoleAdmin: {
		PermViewWebsites,
		PermManageWebsites,
		PermViewKnowledgeBases,
		PermEditKnowledgeBases,
		PermDeleteKnowledgeBases,
		PermViewConversations,
		PermDeleteConversations,
		PermViewTeam,
		PermManageTeam,
	},
	RoleEditor: {
		PermViewKnowledgeBases,
		PermEditKnowledgeBases,
		PermViewConversations,
	},
}

// Permissions returns the permission set for the given role.
// Unknown roles fail closed with an empty set.
func Permissions(role Role) []Permission {
	return rolePermissions[role]
}

// HasPermission reports whether the role grants the given permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// CanManageRole reports whether a member with the acting role may assign or
// revoke the target role. Owners manage every role, admins manage everything
// below owner, editors manage nothing. Deliberately not derived from the
// permission table: manage_team is coarser than this rule.
func CanManageRole(acting, target Role) bool {
	if acting == RoleOwner {
		return true
	}
	if acting == RoleAdmin && target != RoleOwner {
		return true
	}
	return false
}
