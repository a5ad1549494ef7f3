package wiring

import (
	"fmt"

	"github.com/pkg/errors"
)

// IOReqStatus is the outcome of a request.
type IOReqStatus int

// Request statuses.
const (
	// IOReqOK means the request completed synchronously. Its latency says
	// how many cycles later the result counts as available.
	IOReqOK IOReqStatus = iota
	// IOReqInvalid means the request was malformed or hit no target.
	IOReqInvalid
	// IOReqDenied means the target refused the request. The master waits
	// for a grant before retrying.
	IOReqDenied
	// IOReqPending means the response comes later through Resp.
	IOReqPending
)

func (s IOReqStatus) String() string {
	switch s {
	case IOReqOK:
		return "ok"
	case IOReqInvalid:
		return "invalid"
	case IOReqDenied:
		return "denied"
	case IOReqPending:
		return "pending"
	default:
		return fmt.Sprintf("IOReqStatus(%d)", int(s))
	}
}

// IOReq is a memory-mapped access travelling from an IOMaster to an IOSlave.
type IOReq struct {
	Addr    uint64
	Data    []byte
	Size    uint64
	IsWrite bool
	Status  IOReqStatus

	// Payload is free for the initiator.
	Payload any

	latency  int64
	duration int64
	back     *ioBackPath
}

// NewIOReq creates a request.
func NewIOReq(addr uint64, data []byte, isWrite bool) *IOReq {
	return &IOReq{
		Addr:    addr,
		Data:    data,
		Size:    uint64(len(data)),
		IsWrite: isWrite,
	}
}

// Latency returns the cycles the request takes on top of the call.
func (r *IOReq) Latency() int64 {
	return r.latency
}

// SetLatency sets the latency.
func (r *IOReq) SetLatency(cycles int64) {
	r.latency = cycles
}

// IncLatency adds to the latency. Slaves on the path accumulate their cost.
func (r *IOReq) IncLatency(cycles int64) {
	r.latency += cycles
}

// Duration returns the cycles the access occupies the target.
func (r *IOReq) Duration() int64 {
	return r.duration
}

// SetDuration sets the duration.
func (r *IOReq) SetDuration(cycles int64) {
	r.duration = cycles
}

// FullLatency returns the latency plus the duration.
func (r *IOReq) FullLatency() int64 {
	return r.latency + r.duration
}

// Prepare resets the status and timing of a request before reuse.
func (r *IOReq) Prepare() {
	r.Status = IOReqOK
	r.latency = 0
	r.duration = 0
}

type ioBackPath struct {
	resp  func(*IOReq)
	grant func(*IOReq)
}

// IOMaster issues requests to one IOSlave.
type IOMaster struct {
	name  string
	owner Owner

	slave *IOSlave
	muxID int
	kind  BindKind

	respFn  func(*IOReq)
	grantFn func(*IOReq)

	req  func(*IOReq) IOReqStatus
	back *ioBackPath
}

// NewIOMaster creates an IO master port.
func NewIOMaster(owner Owner, name string) *IOMaster {
	mustHaveOwner(owner, name)

	return &IOMaster{name: portName(owner, name), owner: owner}
}

// Name returns the full name of the port.
func (m *IOMaster) Name() string {
	return m.name
}

// Owner returns the component that owns the port.
func (m *IOMaster) Owner() Owner {
	return m.owner
}

// Kind returns "io".
func (m *IOMaster) Kind() string {
	return "io"
}

// IsMaster returns true.
func (m *IOMaster) IsMaster() bool {
	return true
}

// IsBound tells if the master has a slave.
func (m *IOMaster) IsBound() bool {
	return m.slave != nil
}

// SetRespFunc sets the handler receiving responses to pending requests.
func (m *IOMaster) SetRespFunc(fn func(req *IOReq)) {
	m.respFn = fn
	m.resolveBack()
}

// SetGrantFunc sets the handler told that a denied request can be retried.
func (m *IOMaster) SetGrantFunc(fn func(req *IOReq)) {
	m.grantFn = fn
	m.resolveBack()
}

// Req sends a request. The slave answers through the returned status, or
// later through the master's response handler if it returns IOReqPending.
func (m *IOMaster) Req(r *IOReq) IOReqStatus {
	if m.req == nil {
		panic(fmt.Sprintf("wiring: request on unbound port %s", m.name))
	}

	r.back = m.back

	return m.req(r)
}

// ReqForward sends a request on behalf of another master. The response still
// goes to whoever issued the request first.
func (m *IOMaster) ReqForward(r *IOReq) IOReqStatus {
	if m.req == nil {
		panic(fmt.Sprintf("wiring: request on unbound port %s", m.name))
	}

	return m.req(r)
}

func (m *IOMaster) bindTo(p Port, cfg bindConfig) error {
	slave, ok := p.(*IOSlave)
	if !ok {
		return errors.Wrapf(ErrIncompatiblePorts, "bind %s (io) -> %s (%s)",
			m.name, p.Name(), p.Kind())
	}

	if m.slave != nil {
		return errors.Wrapf(ErrAlreadyBound, "bind %s -> %s, already bound to %s",
			m.name, slave.name, m.slave.name)
	}

	m.slave = slave
	m.muxID = cfg.muxID
	if !cfg.hasMuxID {
		m.muxID = slave.nextMuxID
	}
	slave.nextMuxID = max(slave.nextMuxID, m.muxID) + 1
	slave.numMasters++

	m.resolve()

	return nil
}

// Finalize resolves the binding against the slave's current handler.
func (m *IOMaster) Finalize() error {
	if m.slave == nil {
		return nil
	}

	m.resolve()

	return nil
}

// Bindings describes the binding of the port.
func (m *IOMaster) Bindings() []Binding {
	if m.slave == nil {
		return nil
	}

	return []Binding{{
		Master: m.name,
		Slave:  m.slave.name,
		Kind:   m.kind,
		MuxID:  m.muxID,
	}}
}

func (m *IOMaster) resolve() {
	req, kind := m.slave.callPath(m.muxID)

	if clk := crossDomain(m.owner, m.slave.owner); clk != nil {
		fn := req
		req = func(r *IOReq) IOReqStatus {
			clk.Sync()
			return fn(r)
		}
		kind |= BindCrossDomain
	}

	m.req = req
	m.kind = kind
	m.resolveBack()
}

// resolveBack builds the path used by the slave to reach the master.
// Requests in flight keep the path they were sent with.
func (m *IOMaster) resolveBack() {
	resp, grant := m.respFn, m.grantFn
	if resp == nil {
		resp = func(*IOReq) {}
	}

	if grant == nil {
		grant = func(*IOReq) {}
	}

	if m.slave != nil {
		if clk := crossDomain(m.slave.owner, m.owner); clk != nil {
			r, g := resp, grant
			resp = func(req *IOReq) {
				clk.Sync()
				r(req)
			}
			grant = func(req *IOReq) {
				clk.Sync()
				g(req)
			}
		}
	}

	m.back = &ioBackPath{resp: resp, grant: grant}
}

// IOSlave serves requests.
type IOSlave struct {
	name  string
	owner Owner

	reqFn    func(*IOReq) IOReqStatus
	reqMuxFn func(*IOReq, int) IOReqStatus

	numMasters int
	nextMuxID  int
}

// NewIOSlave creates an IO slave port.
func NewIOSlave(owner Owner, name string) *IOSlave {
	mustHaveOwner(owner, name)

	return &IOSlave{name: portName(owner, name), owner: owner}
}

// Name returns the full name of the port.
func (s *IOSlave) Name() string {
	return s.name
}

// Owner returns the component that owns the port.
func (s *IOSlave) Owner() Owner {
	return s.owner
}

// Kind returns "io".
func (s *IOSlave) Kind() string {
	return "io"
}

// IsMaster returns false.
func (s *IOSlave) IsMaster() bool {
	return false
}

// IsBound tells if a master is bound to the slave.
func (s *IOSlave) IsBound() bool {
	return s.numMasters > 0
}

// SetReqFunc sets the request handler.
func (s *IOSlave) SetReqFunc(fn func(req *IOReq) IOReqStatus) {
	s.reqFn, s.reqMuxFn = fn, nil
}

// SetReqMuxFunc sets a request handler that also receives the multiplex id
// of the calling master.
func (s *IOSlave) SetReqMuxFunc(fn func(req *IOReq, id int) IOReqStatus) {
	s.reqFn, s.reqMuxFn = nil, fn
}

// Resp completes a pending request. The response goes back to the master
// that issued it.
func (s *IOSlave) Resp(r *IOReq) {
	if r.back == nil {
		panic(fmt.Sprintf("wiring: %s responding to a request with no origin",
			s.name))
	}

	r.back.resp(r)
}

// Grant tells the master of a denied request that it can retry.
func (s *IOSlave) Grant(r *IOReq) {
	if r.back == nil {
		panic(fmt.Sprintf("wiring: %s granting a request with no origin",
			s.name))
	}

	r.back.grant(r)
}

func (s *IOSlave) callPath(id int) (func(*IOReq) IOReqStatus, BindKind) {
	switch {
	case s.reqMuxFn != nil:
		mux := s.reqMuxFn
		return func(r *IOReq) IOReqStatus { return mux(r, id) }, BindMuxed
	case s.reqFn != nil:
		return s.reqFn, BindDirect
	default:
		return func(*IOReq) IOReqStatus { return IOReqInvalid }, BindDirect
	}
}
