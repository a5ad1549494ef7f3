package clock

// EventFunc is called when an event is dispatched. It receives the owner the
// event was created with.
type EventFunc func(owner any, evt *Event)

type location uint8

const (
	nowhere location = iota
	inRing
	inDelayed
)

// An Event is a callback scheduled on a clock engine at a given cycle.
//
// The owner allocates an event once and reuses it. An event is in at most one
// queue at a time.
type Event struct {
	owner   any
	fn      EventFunc
	Payload any

	cycle  int64
	loc    location
	engine *Engine
	next   *Event
}

// NewEvent creates an event that calls fn with owner.
func NewEvent(owner any, fn EventFunc) *Event {
	if fn == nil {
		panic("clock: event callback must not be nil")
	}

	return &Event{owner: owner, fn: fn}
}

// Owner returns the object the event was created for.
func (e *Event) Owner() any {
	return e.owner
}

// IsEnqueued tells if the event is waiting to be dispatched.
func (e *Event) IsEnqueued() bool {
	return e.loc != nowhere
}

// Cycle returns the absolute cycle the event was last scheduled for.
func (e *Event) Cycle() int64 {
	return e.cycle
}

// SetCallback replaces the callback. Only valid while the event is not
// enqueued.
func (e *Event) SetCallback(fn EventFunc) {
	if e.IsEnqueued() {
		panic("clock: cannot change the callback of an enqueued event")
	}

	e.fn = fn
}
