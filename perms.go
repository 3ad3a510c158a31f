package main

import (
	"strings"
)

// Permission states, as reported by sys.database_permissions.state_desc.
const (
	StateGrant                = "GRANT"
	StateGrantWithGrantOption = "GRANT_WITH_GRANT_OPTION"
	StateDeny                 = "DENY"
	StateRevoke               = "REVOKE"
)

// Perm maps a permission name to its postgres ACL character.
type Perm struct {
	Name string

	Pg string
}

var (
	Connect       = Perm{Name: "CONNECT", Pg: "c"}
	Create        = Perm{Name: "CREATE", Pg: "C"}
	Temporary     = Perm{Name: "TEMPORARY", Pg: "T"}
	DatabasePerms = []Perm{
		Connect,
		Create,
		Temporary,
	}

	Select     = Perm{Name: "SELECT", Pg: "r"}
	Update     = Perm{Name: "UPDATE", Pg: "w"}
	Insert     = Perm{Name: "INSERT", Pg: "a"}
	Delete     = Perm{Name: "DELETE", Pg: "d"}
	Truncate   = Perm{Name: "TRUNCATE", Pg: "D"}
	References = Perm{Name: "REFERENCES", Pg: "x"}
	Trigger    = Perm{Name: "TRIGGER", Pg: "t"}
	Maintain   = Perm{Name: "MAINTAIN", Pg: "m"}
	TablePerms = []Perm{
		Select,
		Update,
		Insert,
		Delete,
		Truncate,
		References,
		Trigger,
		Maintain,
	}

	Usage         = Perm{Name: "USAGE", Pg: "U"}
	SequencePerms = []Perm{
		Usage,
		Select,
		Update,
	}
)

func (p Perm) String() string {
	return p.Name
}

func permCanonical(in string) string {
	return strings.TrimSpace(strings.ToUpper(in))
}

// stateCanonical folds a state description to one of the State constants.
// An empty state counts as a plain grant.
func stateCanonical(state *string) string {
	if state == nil {
		return StateGrant
	}
	s := permCanonical(*state)
	s = strings.ReplaceAll(s, " ", "_")
	if s == "" {
		return StateGrant
	}
	return s
}
