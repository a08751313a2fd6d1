package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermCardAccess Permission = "card:access"
	PermTokenIssue Permission = "token:issue"
	PermAuditRead  Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
var rolePermissions = map[Role][]Permission{
	RoleCardOwner: {PermCardAccess, PermTokenIssue, PermAuditRead},
	RoleNonOwner:  {PermTokenIssue, PermAuditRead},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Endpoint classifies a request for the Gate.
type Endpoint int

const (
	// EndpointUserCreation is POST /createuser. Open to anonymous callers.
	EndpointUserCreation Endpoint = iota

	// EndpointCard covers every /cashcards route, whichever card is targeted.
	EndpointCard

	// EndpointToken is POST /token.
	EndpointToken

	// EndpointAudit is GET /audit, the caller's own trail.
	EndpointAudit
)

func (e Endpoint) String() string {
	switch e {
	case EndpointUserCreation:
		return "user-creation"
	case EndpointCard:
		return "card"
	case EndpointToken:
		return "token"
	case EndpointAudit:
		return "audit"
	default:
		return "unknown"
	}
}

// endpointPermission is the permission an endpoint requires; the empty
// permission marks an open endpoint.
var endpointPermission = map[Endpoint]Permission{
	EndpointUserCreation: "",
	EndpointCard:         PermCardAccess,
	EndpointToken:        PermTokenIssue,
	EndpointAudit:        PermAuditRead,
}

// Gate makes the coarse, identity-only authorisation decision. It never
// looks at a specific record: ownership is enforced by the card store.
type Gate struct{}

// Authorize returns nil when id may call endpoint. A nil id (no or invalid
// credentials) yields ErrUnauthenticated on protected endpoints; an
// authenticated id without the permission yields ErrForbidden. Unknown
// endpoints are refused.
func (Gate) Authorize(endpoint Endpoint, id *Identity) error {
	perm, known := endpointPermission[endpoint]
	if !known {
		return ErrForbidden
	}
	if perm == "" {
		return nil
	}
	if id == nil {
		return ErrUnauthenticated
	}
	if !HasPermission(id.Role, perm) {
		return ErrForbidden
	}
	return nil
}
