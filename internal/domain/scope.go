package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Identity is the caller resolved by the authorization gate.
type Identity struct {
	UserID string
	Role   Role
	Email  string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Scope is the read boundary of a request: either the caller's own rows or
// every row. Resolve it once with ScopeFor and pass it to reads.
type Scope struct {
	userID string
	all    bool
}

func ScopeAll() Scope {
	return Scope{all: true}
}

func ScopeSelf(userID string) Scope {
	return Scope{userID: userID}
}

func ScopeFor(id Identity) Scope {
	if id.IsAdmin() {
		return ScopeAll()
	}
	return ScopeSelf(id.UserID)
}

func (s Scope) All() bool {
	return s.all
}

func (s Scope) UserID() string {
	return s.userID
}

// Allows reports whether a row owned by ownerID is visible in this scope.
func (s Scope) Allows(ownerID string) bool {
	return s.all || s.userID == ownerID
}
