package domain

// AccessLevel is a principal's role on one client.
type AccessLevel string

const (
	AccessViewer  AccessLevel = "viewer"
	AccessManager AccessLevel = "manager"
	AccessAdmin   AccessLevel = "admin"
)

// Principal is the authenticated caller as presented by the boundary layer.
// The system has no opinion on how it was authenticated.
type Principal struct {
	UserID         string                 `json:"userId"`
	IsSuperAdmin   bool                   `json:"isSuperAdmin"`
	PropertyAccess map[string]AccessLevel `json:"propertyAccess"`
}

// CanRead reports whether the principal may read clientID's data.
func (p *Principal) CanRead(clientID string) bool {
	if p.IsSuperAdmin {
		return true
	}
	_, ok := p.PropertyAccess[clientID]
	return ok
}

// CanWrite reports whether the principal may mutate clientID's data.
func (p *Principal) CanWrite(clientID string) bool {
	if p.IsSuperAdmin {
		return true
	}
	level := p.PropertyAccess[clientID]
	return level == AccessManager || level == AccessAdmin
}

// IsAdminOf reports whether the principal holds the admin role on clientID.
// Deleting transactions and running import/purge require it.
func (p *Principal) IsAdminOf(clientID string) bool {
	if p.IsSuperAdmin {
		return true
	}
	return p.PropertyAccess[clientID] == AccessAdmin
}
