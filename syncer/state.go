package syncer

// Outcome reports what a refresh did to the registry.
type Outcome int

const (
	// OutcomeNoop: nothing to refresh, registry untouched.
	OutcomeNoop Outcome = iota
	// OutcomeInstalled: a new snapshot was installed.
	OutcomeInstalled
	// OutcomeSuperseded: the fetch succeeded but a newer snapshot had been
	// installed meanwhile, so the result was discarded.
	OutcomeSuperseded
	// OutcomeFailed: a provider query failed, registry untouched.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoop:
		return "noop"
	case OutcomeInstalled:
		return "installed"
	case OutcomeSuperseded:
		return "superseded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy decides how a finished refresh is installed.
type Policy int

const (
	// PolicyVersioned installs only if the registry has not moved since the
	// refresh read it.
	PolicyVersioned Policy = iota
	// PolicyLastWriterWins installs unconditionally; the last refresh to
	// finish wins even if it started first.
	PolicyLastWriterWins
)

// ParsePolicy maps the config spelling to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch s {
	case "versioned", "":
		return PolicyVersioned, true
	case "last-writer-wins":
		return PolicyLastWriterWins, true
	}
	return PolicyVersioned, false
}

// Kind distinguishes the two refresh operations.
type Kind int

const (
	KindSingle Kind = iota
	KindBulk
)

func (k Kind) String() string {
	if k == KindBulk {
		return "bulk"
	}
	return "single"
}

// State is the per-invocation lifecycle:
//
//	Idle → Fetching → Installing → Idle
//	                ↘ Failed → Idle
type State int

const (
	StateIdle State = iota
	StateFetching
	StateInstalling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateInstalling:
		return "installing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateFunc receives transitions. name is empty for bulk refreshes.
type StateFunc func(kind Kind, name string, state State)
