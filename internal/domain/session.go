package domain

// SessionState is the tracker's view of the auth provider's session.
type SessionState int

const (
	// SessionUnknown is the initial state, before the first eager check.
	SessionUnknown SessionState = iota
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SessionIdentity is an authenticated principal. It is owned by the session
// tracker; everything else treats it as read-only input.
type SessionIdentity struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Requester is the per-request view of who is calling: the resolved session
// state plus, for anonymous requesters, the client-durable guest id.
type Requester struct {
	State    SessionState
	Identity *SessionIdentity
	GuestID  string
}

// Subject returns the stable key identifying the requester for ledger names
// and event channels: the user id when authenticated, the guest id otherwise.
func (r Requester) Subject() string {
	if r.State == SessionAuthenticated && r.Identity != nil {
		return r.Identity.UserID
	}
	return r.GuestID
}
