package order

type State int

const (
	StateIdle State = iota
	StateCustomerResolving
	StateCustomerResolved
	StateOrderCreating
	StateOrderCreated
	StateItemsAttaching
	StateStatusUpdating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCustomerResolving:
		return "customer_resolving"
	case StateCustomerResolved:
		return "customer_resolved"
	case StateOrderCreating:
		return "order_creating"
	case StateOrderCreated:
		return "order_created"
	case StateItemsAttaching:
		return "items_attaching"
	case StateStatusUpdating:
		return "status_updating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
