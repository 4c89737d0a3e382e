package auth

import "time"

// User identifies an authenticated admin console user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session carries the session attached to an authenticated request.
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Result is the outcome of authentication as supplied by the external
// auth collaborator. It is read-only from this package's perspective.
type Result struct {
	IsAuthenticated bool     `json:"isAuthenticated"`
	User            *User    `json:"user,omitempty"`
	Session         *Session `json:"session,omitempty"`
}

// SystemUser is the sentinel actor recorded when no authenticated user
// exists (scheduled jobs, anonymous requests, internal calls).
var SystemUser = User{
	ID:    "system",
	Email: "system@internal",
	Name:  "System",
	Role:  "system",
}

// Actor returns the user to attribute an action to, falling back to
// SystemUser when the request was not authenticated.
func (r *Result) Actor() User {
	if r == nil || !r.IsAuthenticated || r.User == nil {
		return SystemUser
	}
	return *r.User
}

// SessionID returns the session identifier, or empty when none exists.
func (r *Result) SessionID() string {
	if r == nil || r.Session == nil {
		return ""
	}
	return r.Session.ID
}
