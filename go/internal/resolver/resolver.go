// Package resolver decides the advertised status text and connection admission
// from snapshots of the lifecycle countdowns. It holds no state.
package resolver

import (
	"strings"

	"github.com/google/uuid"
)

// Override is a countdown's contribution to resolution: whether it is running
// and the rendered text it would show.
type Override struct {
	Running bool
	Text    string
}

// Active returns an Override for a running countdown.
func Active(text string) Override {
	return Override{Running: true, Text: text}
}

// StatusInput is everything the status resolver looks at.
type StatusInput struct {
	Beginning Override
	Restart   Override
	End       Override
	Started   bool

	DefaultEnabled bool
	Default        string
}

// ResolveStatus picks the status text by precedence: Beginning, Restart, End
// (only once the server has started), then the default when enabled.
func ResolveStatus(in StatusInput) (string, bool) {
	switch {
	case in.Beginning.Running:
		return in.Beginning.Text, true
	case in.Restart.Running:
		return in.Restart.Text, true
	case in.End.Running && in.Started:
		return in.End.Text, true
	case in.DefaultEnabled:
		return in.Default, true
	default:
		return "", false
	}
}

// Identity is a connecting player.
type Identity struct {
	Name string
	UUID uuid.UUID
}

func (id Identity) String() string {
	if id.UUID == uuid.Nil {
		return id.Name
	}
	return id.Name + " (" + id.UUID.String() + ")"
}

// Key is the case-insensitive lookup key for privilege lists.
func (id Identity) Key() string {
	return strings.ToLower(id.Name)
}

// Privileges answers the bypass questions for a Beginning countdown.
type Privileges interface {
	IsOperator(id Identity) bool
	IsAllowListed(id Identity) bool
}

// AdmissionInput is everything the admission resolver looks at. The End
// countdown never affects admission and is not part of it.
type AdmissionInput struct {
	Beginning Override
	Restart   Override
}

// Decision is the outcome of an admission check.
type Decision struct {
	Admit   bool
	Message string
}

// Admit allows the connection.
func Admit() Decision {
	return Decision{Admit: true}
}

// Reject refuses the connection with message.
func Reject(message string) Decision {
	return Decision{Message: message}
}

// ResolveAdmission rejects connections while Beginning runs, unless the player
// is an operator or allow-listed, and while Restart runs with no bypass.
// Privileges are consulted only when a Beginning rejection is about to happen.
func ResolveAdmission(in AdmissionInput, id Identity, privileges Privileges) Decision {
	if in.Beginning.Running {
		if privileges != nil && (privileges.IsOperator(id) || privileges.IsAllowListed(id)) {
			return Admit()
		}
		return Reject(in.Beginning.Text)
	}
	if in.Restart.Running {
		return Reject(in.Restart.Text)
	}
	return Admit()
}
