// Package types provides the core data types for the tool runtime.
package types

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// Session binds a working directory and an optional parent under which
// invocations execute.
type Session struct {
	ID        string        `json:"id"`
	Directory string        `json:"directory"`
	ParentID  *string       `json:"parentID,omitempty"`
	Status    SessionStatus `json:"status"`
	Time      SessionTime   `json:"time"`
}

// SessionTime contains timestamps for a session, in Unix milliseconds.
type SessionTime struct {
	Created int64  `json:"created"`
	Updated int64  `json:"updated"`
	Closed  *int64 `json:"closed,omitempty"`
}

// Active reports whether the session accepts invocations.
func (s *Session) Active() bool {
	return s.Status == SessionActive
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.ParentID != nil {
		p := *s.ParentID
		c.ParentID = &p
	}
	if s.Time.Closed != nil {
		t := *s.Time.Closed
		c.Time.Closed = &t
	}
	return &c
}
