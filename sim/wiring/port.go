// Package wiring connects component ports.
//
// A binding is resolved once, when it is made and again when the platform is
// finalized. At run time a master calls straight into the closure it stored,
// whether that is the slave's handler, a trampoline adding a multiplex id, or
// a stub that first brings the slave's clock domain up to date.
package wiring

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/vpsim/sim/clock"
)

// Errors returned when binding ports.
var (
	ErrIncompatiblePorts = errors.New("incompatible ports")
	ErrAlreadyBound      = errors.New("port already bound")
	ErrUnboundPort       = errors.New("port not bound")
	ErrNotMaster         = errors.New("port is not a master port")
	ErrNotSlave          = errors.New("port is not a slave port")
)

// An Owner is the component a port belongs to.
type Owner interface {
	Name() string

	// Clock returns the clock domain of the owner, or nil for components
	// without a clock.
	Clock() *clock.Engine
}

// A Port is one end of a binding.
type Port interface {
	// Name returns the full name of the port, "Owner.Port".
	Name() string
	Owner() Owner
	Kind() string
	IsMaster() bool
	IsBound() bool
}

// A MasterPort can be bound to slave ports.
type MasterPort interface {
	Port

	// Finalize resolves the bindings again. Call it after every component
	// has registered its handlers.
	Finalize() error

	// Bindings describes the resolved bindings in bind order.
	Bindings() []Binding

	bindTo(slave Port, cfg bindConfig) error
}

// BindKind describes how a binding was resolved.
type BindKind uint8

// Binding kinds. They combine.
const (
	BindDirect      BindKind = 0
	BindMuxed       BindKind = 1 << 0
	BindCrossDomain BindKind = 1 << 1
)

func (k BindKind) String() string {
	if k == BindDirect {
		return "direct"
	}

	var parts []string
	if k&BindMuxed != 0 {
		parts = append(parts, "muxed")
	}

	if k&BindCrossDomain != 0 {
		parts = append(parts, "cross-domain")
	}

	return strings.Join(parts, "+")
}

// Binding describes one resolved binding of a master port.
type Binding struct {
	Master string
	Slave  string
	Kind   BindKind
	MuxID  int
}

type bindConfig struct {
	muxID    int
	hasMuxID bool
}

// A BindOption customizes a binding.
type BindOption func(*bindConfig)

// WithMuxID sets the id passed to a multiplexed slave handler. Without it,
// a multiplexed slave numbers its masters in bind order starting at 0.
func WithMuxID(id int) BindOption {
	return func(c *bindConfig) {
		c.muxID = id
		c.hasMuxID = true
	}
}

// Bind connects a master port to a slave port.
func Bind(master, slave Port, opts ...BindOption) error {
	m, ok := master.(MasterPort)
	if !ok || !master.IsMaster() {
		return errors.Wrapf(ErrNotMaster, "bind %s -> %s",
			master.Name(), slave.Name())
	}

	if slave.IsMaster() {
		return errors.Wrapf(ErrNotSlave, "bind %s -> %s",
			master.Name(), slave.Name())
	}

	cfg := bindConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return m.bindTo(slave, cfg)
}

// crossDomain returns the clock to synchronize when a call goes from a
// component in the from domain to a component in the to domain.
func crossDomain(from, to Owner) *clock.Engine {
	target := to.Clock()
	if target == nil || target == from.Clock() {
		return nil
	}

	return target
}

func portName(owner Owner, name string) string {
	if owner == nil {
		return name
	}

	return owner.Name() + "." + name
}
