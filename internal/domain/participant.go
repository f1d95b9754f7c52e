package domain

import "fmt"

type participantKind uint8

const (
	kindReal participantKind = iota + 1
	kindSynthetic
)

// Participant is either a real user or a synthetic filler added to reach
// quorum. Only real participants resolve to a UserID, so ledger and
// notification code can't be handed a filler.
type Participant struct {
	kind participantKind
	user UserID
	tag  string
}

func Real(id UserID) Participant {
	return Participant{kind: kindReal, user: id}
}

func Synthetic(tag string) Participant {
	return Participant{kind: kindSynthetic, tag: tag}
}

// RealID returns the user id and true for real participants.
func (p Participant) RealID() (UserID, bool) {
	if p.kind != kindReal {
		return 0, false
	}
	return p.user, true
}

func (p Participant) IsSynthetic() bool { return p.kind == kindSynthetic }

func (p Participant) String() string {
	switch p.kind {
	case kindReal:
		return p.user.String()
	case kindSynthetic:
		return p.tag
	default:
		return "<none>"
	}
}

// RealIDs filters out synthetic participants.
func RealIDs(ps []Participant) []UserID {
	out := make([]UserID, 0, len(ps))
	for _, p := range ps {
		if id, ok := p.RealID(); ok {
			out = append(out, id)
		}
	}
	return out
}

func (p Participant) GoString() string {
	if p.IsSynthetic() {
		return fmt.Sprintf("Synthetic(%q)", p.tag)
	}
	return fmt.Sprintf("Real(%d)", p.user)
}
