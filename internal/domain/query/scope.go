package query

// AccessScope selects which tenancy filter a store operation runs under.
// Repositories compile the scope into a server-side predicate; callers can
// never widen it from request input.
type AccessScope int

const (
	// ScopeOwnerOnly matches items whose collection belongs to a workspace
	// owned by the acting user. Used for create, delete and quota counting.
	ScopeOwnerOnly AccessScope = iota

	// ScopeOwnerOrMember additionally matches items in workspaces where the
	// acting user holds a team membership. Used for reads, updates and
	// revision traversal.
	ScopeOwnerOrMember
)

// String returns a name for logging.
func (s AccessScope) String() string {
	switch s {
	case ScopeOwnerOnly:
		return "owner_only"
	case ScopeOwnerOrMember:
		return "owner_or_member"
	default:
		return "unknown"
	}
}
