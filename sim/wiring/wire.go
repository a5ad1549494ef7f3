package wiring

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/sim/clock"
)

func wireKind[T any]() string {
	return "wire[" + reflect.TypeOf((*T)(nil)).Elem().String() + "]"
}

func mustHaveOwner(owner Owner, name string) {
	if owner == nil {
		panic("wiring: port " + name + " has no owner")
	}
}

// WireMaster drives a value of type T to every slave it is bound to.
type WireMaster[T any] struct {
	name  string
	owner Owner
	links []*wireLink[T]

	sync     func(T)
	syncBack func(*T)
}

type wireLink[T any] struct {
	slave *WireSlave[T]
	muxID int
	kind  BindKind
}

// NewWireMaster creates a wire master port.
func NewWireMaster[T any](owner Owner, name string) *WireMaster[T] {
	mustHaveOwner(owner, name)

	return &WireMaster[T]{name: portName(owner, name), owner: owner}
}

// Name returns the full name of the port.
func (m *WireMaster[T]) Name() string {
	return m.name
}

// Owner returns the component that owns the port.
func (m *WireMaster[T]) Owner() Owner {
	return m.owner
}

// Kind returns the kind of the port, for example "wire[bool]".
func (m *WireMaster[T]) Kind() string {
	return wireKind[T]()
}

// IsMaster returns true.
func (m *WireMaster[T]) IsMaster() bool {
	return true
}

// IsBound tells if the master has at least one slave.
func (m *WireMaster[T]) IsBound() bool {
	return len(m.links) > 0
}

// Sync sends v to every bound slave in bind order. Calling Sync on an
// unbound master panics.
func (m *WireMaster[T]) Sync(v T) {
	if m.sync == nil {
		panic(fmt.Sprintf("wiring: sync on unbound port %s", m.name))
	}

	m.sync(v)
}

// SyncBack asks every bound slave, in bind order, to fill *v.
func (m *WireMaster[T]) SyncBack(v *T) {
	if m.syncBack == nil {
		panic(fmt.Sprintf("wiring: sync back on unbound port %s", m.name))
	}

	m.syncBack(v)
}

func (m *WireMaster[T]) bindTo(p Port, cfg bindConfig) error {
	slave, ok := p.(*WireSlave[T])
	if !ok {
		return errors.Wrapf(ErrIncompatiblePorts, "bind %s (%s) -> %s (%s)",
			m.name, m.Kind(), p.Name(), p.Kind())
	}

	for _, l := range m.links {
		if l.slave == slave {
			return errors.Wrapf(ErrAlreadyBound, "bind %s -> %s",
				m.name, slave.name)
		}
	}

	l := &wireLink[T]{slave: slave, muxID: cfg.muxID}
	if !cfg.hasMuxID {
		l.muxID = slave.nextMuxID
	}
	slave.nextMuxID = max(slave.nextMuxID, l.muxID) + 1
	slave.numMasters++

	m.links = append(m.links, l)
	m.resolve()

	return nil
}

// Finalize resolves the bindings against the slaves' current handlers.
func (m *WireMaster[T]) Finalize() error {
	m.resolve()
	return nil
}

// Bindings describes the bindings of the port.
func (m *WireMaster[T]) Bindings() []Binding {
	bindings := make([]Binding, len(m.links))
	for i, l := range m.links {
		bindings[i] = Binding{
			Master: m.name,
			Slave:  l.slave.name,
			Kind:   l.kind,
			MuxID:  l.muxID,
		}
	}

	return bindings
}

func (m *WireMaster[T]) resolve() {
	syncs := make([]func(T), 0, len(m.links))
	backs := make([]func(*T), 0, len(m.links))

	for _, l := range m.links {
		sync, back, kind := l.slave.callPath(l.muxID)

		if clk := crossDomain(m.owner, l.slave.owner); clk != nil {
			sync, back = syncStub(clk, sync), syncBackStub(clk, back)
			kind |= BindCrossDomain
		}

		l.kind = kind
		syncs = append(syncs, sync)
		backs = append(backs, back)
	}

	m.sync = fanOut(syncs)
	m.syncBack = fanOut(backs)
}

func syncStub[T any](clk *clock.Engine, fn func(T)) func(T) {
	return func(v T) {
		clk.Sync()
		fn(v)
	}
}

func syncBackStub[T any](clk *clock.Engine, fn func(*T)) func(*T) {
	return func(v *T) {
		clk.Sync()
		fn(v)
	}
}

func fanOut[A any](fns []func(A)) func(A) {
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	default:
		return func(a A) {
			for _, fn := range fns {
				fn(a)
			}
		}
	}
}

// WireSlave receives values of type T.
type WireSlave[T any] struct {
	name  string
	owner Owner

	sync        func(T)
	syncMux     func(T, int)
	syncBack    func(*T)
	syncBackMux func(*T, int)

	numMasters int
	nextMuxID  int
}

// NewWireSlave creates a wire slave port.
func NewWireSlave[T any](owner Owner, name string) *WireSlave[T] {
	mustHaveOwner(owner, name)

	return &WireSlave[T]{name: portName(owner, name), owner: owner}
}

// Name returns the full name of the port.
func (s *WireSlave[T]) Name() string {
	return s.name
}

// Owner returns the component that owns the port.
func (s *WireSlave[T]) Owner() Owner {
	return s.owner
}

// Kind returns the kind of the port.
func (s *WireSlave[T]) Kind() string {
	return wireKind[T]()
}

// IsMaster returns false.
func (s *WireSlave[T]) IsMaster() bool {
	return false
}

// IsBound tells if a master is bound to the slave.
func (s *WireSlave[T]) IsBound() bool {
	return s.numMasters > 0
}

// SetSyncFunc sets the handler called when a master drives a value.
func (s *WireSlave[T]) SetSyncFunc(fn func(v T)) {
	s.sync, s.syncMux = fn, nil
}

// SetSyncMuxFunc sets a handler that also receives the multiplex id of the
// calling master.
func (s *WireSlave[T]) SetSyncMuxFunc(fn func(v T, id int)) {
	s.sync, s.syncMux = nil, fn
}

// SetSyncBackFunc sets the handler that fills the value a master asks for.
func (s *WireSlave[T]) SetSyncBackFunc(fn func(v *T)) {
	s.syncBack, s.syncBackMux = fn, nil
}

// SetSyncBackMuxFunc is the multiplexed form of SetSyncBackFunc.
func (s *WireSlave[T]) SetSyncBackMuxFunc(fn func(v *T, id int)) {
	s.syncBack, s.syncBackMux = nil, fn
}

// callPath returns the closures a master bound with id should call.
// Missing handlers resolve to no-ops.
func (s *WireSlave[T]) callPath(id int) (func(T), func(*T), BindKind) {
	kind := BindDirect

	sync := func(T) {}
	switch {
	case s.syncMux != nil:
		mux := s.syncMux
		sync = func(v T) { mux(v, id) }
		kind = BindMuxed
	case s.sync != nil:
		sync = s.sync
	}

	back := func(*T) {}
	switch {
	case s.syncBackMux != nil:
		mux := s.syncBackMux
		back = func(v *T) { mux(v, id) }
		kind = BindMuxed
	case s.syncBack != nil:
		back = s.syncBack
	}

	return sync, back, kind
}
