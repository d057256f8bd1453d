package auth

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"session_id"`
}

// IsAdmin reports whether the session holds the Admin role
func (s *SessionData) IsAdmin() bool {
	for _, role := range s.Roles {
		if role == RoleAdmin {
			return true
		}
	}
	return false
}

// Built-in roles created by the seed
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)
