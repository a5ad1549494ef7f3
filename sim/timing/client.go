package timing

import "fmt"

// A Client is something the time engine activates. Clock engines are the
// usual clients, but any object can embed ClientState and be scheduled.
type Client interface {
	// Exec runs the client at the current time. It returns the delay until
	// the client wants to run again, or Idle.
	Exec() VTimeInPS

	// ScheduleState returns the bookkeeping the engine keeps for the client.
	ScheduleState() *ClientState
}

// ClientState is the scheduling state of a client. Embed it by value.
type ClientState struct {
	next     Client
	nextTime VTimeInPS
	enqueued bool
	running  bool
}

// ScheduleState returns s.
func (s *ClientState) ScheduleState() *ClientState {
	return s
}

// IsEnqueued tells if the client is in the engine's pending list.
func (s *ClientState) IsEnqueued() bool {
	return s.enqueued
}

// IsRunning tells if the engine is currently executing the client.
func (s *ClientState) IsRunning() bool {
	return s.running
}

// NextTime returns the time the client is scheduled at. It is only
// meaningful while the client is enqueued.
func (s *ClientState) NextTime() VTimeInPS {
	return s.nextTime
}

type named interface {
	Name() string
}

func clientName(c Client) string {
	if n, ok := c.(named); ok {
		return n.Name()
	}

	return fmt.Sprintf("%T", c)
}
