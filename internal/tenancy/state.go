package tenancy

// State is the lifecycle position of a Manager.
type State int

const (
	Inert State = iota
	Activating
	Active
	Deactivating
)

func (s State) String() string {
	switch s {
	case Inert:
		return "inert"
	case Activating:
		return "activating"
	case Active:
		return "active"
	case Deactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}
