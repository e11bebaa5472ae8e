package authclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// SessionStatus is the authentication status of the client
type SessionStatus string

const (
	StatusAnonymous      SessionStatus = "anonymous"
	StatusAuthenticating SessionStatus = "authenticating"
	StatusAuthenticated  SessionStatus = "authenticated"
)

// sessionTransitions lists the allowed status moves. Resetting to anonymous
// is always allowed and handled by Session.Reset.
var sessionTransitions = map[SessionStatus]map[SessionStatus]struct{}{
	StatusAnonymous: {
		StatusAuthenticating: {},
	},
	StatusAuthenticating: {
		StatusAuthenticated: {},
		StatusAnonymous:     {},
	},
	StatusAuthenticated: {
		StatusAuthenticating: {},
		StatusAnonymous:      {},
	},
}

// Session is the client held record of "am I logged in".
// It is owned and mutated by Store, everyone else gets a copy.
type Session struct {
	Identity   string        `json:"identity,omitempty"`
	Token      string        `json:"-"`
	Status     SessionStatus `json:"status"`
	Mode       TransportMode `json:"mode"`
	Generation uint64        `json:"generation"`
}

// IsAuthenticated is derived from Status, never stored separately
func (s Session) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// Valid reports whether the identity/token invariant holds for the status
func (s Session) Valid() bool {
	hasCredential := s.Identity != ""
	if s.Mode == TransportToken {
		hasCredential = hasCredential && s.Token != ""
	}

	if s.Status == StatusAuthenticated {
		return hasCredential
	}
	return true
}

// Transition moves the session to target if the table allows it
func (s *Session) Transition(target SessionStatus) error {
	if s.Status == "" {
		s.Status = StatusAnonymous
	}

	if s.Status == target {
		return nil
	}

	if target == StatusAnonymous {
		s.Status = target
		return nil
	}

	if allowed, ok := sessionTransitions[s.Status]; ok {
		if _, exists := allowed[target]; exists {
			s.Status = target
			return nil
		}
	}

	return errors.Wrapf(ErrInvalidTransition, "from %s to %s", s.Status, target)
}

// Authenticate stores the credential and moves to authenticated
func (s *Session) Authenticate(identity, token string) error {
	next := *s
	next.Identity = identity
	if s.Mode == TransportToken {
		next.Token = token
	} else {
		next.Token = ""
	}

	if err := next.Transition(StatusAuthenticated); err != nil {
		return err
	}

	if !next.Valid() {
		if s.Mode == TransportToken && token == "" {
			return ErrMissingToken
		}
		return errors.Wrap(ErrInvalidTransition, "missing identity")
	}

	*s = next
	return nil
}

// Reset clears identity and token and invalidates in flight results
func (s *Session) Reset() {
	s.Identity = ""
	s.Token = ""
	s.Status = StatusAnonymous
	s.Generation++
}

// restoreSession seeds a session from persisted values.
// An entry that breaks the invariant yields an anonymous session.
func restoreSession(mode TransportMode, identity, token string) Session {
	s := Session{Mode: mode, Status: StatusAnonymous}
	if identity == "" {
		return s
	}

	s.Identity = identity
	if mode == TransportToken {
		s.Token = token
	}
	s.Status = StatusAuthenticated

	if !s.Valid() {
		return Session{Mode: mode, Status: StatusAnonymous}
	}
	return s
}

func (s Session) String() string {
	token := "<none>"
	if s.Token != "" {
		token = "***"
	}
	return fmt.Sprintf("identity=%s token=%s status=%s mode=%s gen=%d",
		s.Identity, token, s.Status, s.Mode, s.Generation)
}
