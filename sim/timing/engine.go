// Package timing provides the global time engine. It keeps every scheduled
// client in a list sorted by activation time and activates the earliest one
// until nothing is left to do.
package timing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sarchlab/vpsim/sim/hooking"
)

// HookPosBeforeExec fires before a client is activated. Item is the client.
var HookPosBeforeExec = &hooking.HookPos{Name: "BeforeExec"}

// HookPosAfterExec fires after a client is activated. Item is the client and
// Detail is the delay it returned.
var HookPosAfterExec = &hooking.HookPos{Name: "AfterExec"}

// RunResult tells why Run returned.
type RunResult int

// The possible results of a run.
const (
	// RunFinished means there was nothing left to schedule.
	RunFinished RunResult = iota
	// RunStopped means Stop or StopWithStatus was called.
	RunStopped
	// RunKilled means the run did not finish before its context ended.
	RunKilled
)

func (r RunResult) String() string {
	switch r {
	case RunFinished:
		return "finished"
	case RunStopped:
		return "stopped"
	case RunKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// An EndHandler is notified once when the last reference on the engine is
// released.
type EndHandler interface {
	Handle(now VTimeInPS)
}

// Engine is the global time engine.
//
// One goroutine runs the loop. It owns the pending list and the current time.
// Other goroutines interact with it through Lock, Unlock, Stop, Pause,
// Continue and StepFor. They may enqueue clients only while holding the lock.
type Engine struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTimeInPS

	first      Client
	numPending int

	// gate holds a single token. The loop owns the token for the duration of
	// every activation, so receiving it means the loop is at a boundary.
	gate   chan struct{}
	wake   chan struct{}
	locked atomic.Bool

	stopRequested atomic.Bool
	status        atomic.Int64

	ctrlLock     sync.Mutex
	paused       bool
	hasStepLimit bool
	stepLimit    VTimeInPS
	keepAlive    bool

	singleRunLock sync.Mutex
	running       atomic.Bool
	killGrace     time.Duration

	refCount    atomic.Int64
	endOnce     sync.Once
	endHandlers []EndHandler
}

// NewEngine creates an engine that stops when nothing is scheduled.
func NewEngine() *Engine {
	return MakeBuilder().Build()
}

// Builder builds time engines.
type Builder struct {
	keepAlive bool
	killGrace time.Duration
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		killGrace: time.Second,
	}
}

// WithKeepAlive makes the engine wait for new work instead of returning when
// its pending list becomes empty. Such an engine only returns on Stop.
func (b Builder) WithKeepAlive() Builder {
	b.keepAlive = true
	return b
}

// WithKillGrace sets how long RunContext waits for the loop to reach a
// boundary after its context ends.
func (b Builder) WithKillGrace(d time.Duration) Builder {
	b.killGrace = d
	return b
}

// Build creates the engine.
func (b Builder) Build() *Engine {
	e := &Engine{
		HookableBase: hooking.NewHookableBase(),
		gate:         make(chan struct{}, 1),
		wake:         make(chan struct{}, 1),
		keepAlive:    b.keepAlive,
		killGrace:    b.killGrace,
	}
	e.gate <- struct{}{}

	return e
}

// CurrentTime returns the current simulated time. It is safe to call from
// any goroutine.
func (e *Engine) CurrentTime() VTimeInPS {
	return e.readNow()
}

func (e *Engine) readNow() VTimeInPS {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *Engine) writeNow(t VTimeInPS) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// NumPending returns the number of scheduled clients.
func (e *Engine) NumPending() int {
	return e.numPending
}

// PendingClients returns the scheduled clients in activation order. Call it
// from the loop goroutine or while holding the lock.
func (e *Engine) PendingClients() []Client {
	clients := make([]Client, 0, e.numPending)
	for c := e.first; c != nil; c = c.ScheduleState().next {
		clients = append(clients, c)
	}

	return clients
}

// Enqueue schedules a client delay picoseconds from now. Clients scheduled
// at the same time are activated in the order they were enqueued.
// Enqueueing a client that is already scheduled panics.
func (e *Engine) Enqueue(c Client, delay VTimeInPS) {
	if delay < 0 {
		panic("timing: cannot enqueue a client in the past")
	}

	s := c.ScheduleState()
	if s.enqueued {
		panic("timing: client " + clientName(c) + " is already enqueued")
	}

	e.insert(c, s, e.readNow()+delay)
}

// Reschedule makes sure the client runs no later than delay picoseconds from
// now. A client already scheduled earlier is left alone. A client scheduled
// later is moved.
func (e *Engine) Reschedule(c Client, delay VTimeInPS) {
	if delay < 0 {
		panic("timing: cannot schedule a client in the past")
	}

	s := c.ScheduleState()
	t := e.readNow() + delay

	if s.enqueued {
		if s.nextTime <= t {
			return
		}

		e.unlink(c)
	}

	e.insert(c, s, t)
}

func (e *Engine) insert(c Client, s *ClientState, t VTimeInPS) {
	var prev Client

	cur := e.first
	for cur != nil && cur.ScheduleState().nextTime <= t {
		prev = cur
		cur = cur.ScheduleState().next
	}

	s.nextTime = t
	s.enqueued = true
	s.next = cur

	if prev == nil {
		e.first = c
	} else {
		prev.ScheduleState().next = c
	}

	e.numPending++
}

func (e *Engine) unlink(c Client) {
	var prev Client

	for cur := e.first; cur != nil; cur = cur.ScheduleState().next {
		if cur != c {
			prev = cur
			continue
		}

		s := c.ScheduleState()
		if prev == nil {
			e.first = s.next
		} else {
			prev.ScheduleState().next = s.next
		}

		s.next = nil
		s.enqueued = false
		e.numPending--

		return
	}

	panic("timing: client " + clientName(c) + " is not in the pending list")
}

// Run activates clients until nothing is scheduled or a stop is requested.
// It runs on the calling goroutine.
func (e *Engine) Run() RunResult {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	e.running.Store(true)
	defer e.running.Store(false)

	for {
		<-e.gate

		result, done, wait := e.atBoundary()
		if done {
			e.gate <- struct{}{}
			return result
		}

		if wait {
			e.gate <- struct{}{}
			<-e.wake

			continue
		}

		e.activateFirst()
		e.gate <- struct{}{}
	}
}

// RunContext runs the loop on its own goroutine. If ctx ends before the loop
// returns, the engine is asked to stop and RunKilled is returned once the
// loop has left the activation in progress. If that takes longer than the
// kill grace, RunKilled is returned anyway and IsRunning stays true until the
// loop gets out.
func (e *Engine) RunContext(ctx context.Context) RunResult {
	done := make(chan RunResult, 1)

	go func() {
		done <- e.Run()
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
	}

	e.Stop()

	grace := time.NewTimer(e.killGrace)
	defer grace.Stop()

	select {
	case <-done:
	case <-grace.C:
	}

	return RunKilled
}

// atBoundary decides what the loop does next. It runs with the gate token
// held.
func (e *Engine) atBoundary() (result RunResult, done, wait bool) {
	if e.stopRequested.CompareAndSwap(true, false) {
		return RunStopped, true, false
	}

	e.ctrlLock.Lock()
	defer e.ctrlLock.Unlock()

	if e.paused {
		return 0, false, true
	}

	if e.hasStepLimit && e.stepWindowDone() {
		if e.stepLimit > e.readNow() {
			e.writeNow(e.stepLimit)
		}

		e.hasStepLimit = false
		e.paused = true

		return 0, false, true
	}

	if e.first == nil {
		if e.keepAlive {
			return 0, false, true
		}

		return RunFinished, true, false
	}

	return 0, false, false
}

func (e *Engine) stepWindowDone() bool {
	if e.first == nil {
		return e.keepAlive
	}

	return e.first.ScheduleState().nextTime > e.stepLimit
}

func (e *Engine) activateFirst() {
	c := e.first
	s := c.ScheduleState()

	e.first = s.next
	s.next = nil
	s.enqueued = false
	e.numPending--

	e.writeNow(s.nextTime)

	hookCtx := hooking.HookCtx{Domain: e, Pos: HookPosBeforeExec, Item: c}
	if e.NumHooks() > 0 {
		e.InvokeHook(hookCtx)
	}

	s.running = true
	delay := c.Exec()
	s.running = false

	if e.NumHooks() > 0 {
		hookCtx.Pos = HookPosAfterExec
		hookCtx.Detail = delay
		e.InvokeHook(hookCtx)
	}

	if delay >= 0 {
		e.Reschedule(c, delay)
	}
}

func (e *Engine) poke() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Stop asks the loop to return at the next boundary. It can be called from
// any goroutine, including from inside a client.
func (e *Engine) Stop() {
	e.stopRequested.Store(true)
	e.poke()
}

// StopWithStatus records a status and stops the engine.
func (e *Engine) StopWithStatus(status int) {
	e.status.Store(int64(status))
	e.Stop()
}

// RunStatus returns the status given to the last StopWithStatus call.
func (e *Engine) RunStatus() int {
	return int(e.status.Load())
}

// Lock blocks until the loop is between two activations and holds it there.
// Must not be called from inside a client.
func (e *Engine) Lock() {
	<-e.gate
	e.locked.Store(true)
}

// Unlock lets the loop continue. Whether it actually runs depends on the
// pause state, which Lock and Unlock leave untouched.
func (e *Engine) Unlock() {
	if !e.locked.CompareAndSwap(true, false) {
		panic("timing: unlock of an engine that is not locked")
	}

	e.gate <- struct{}{}
	e.poke()
}

// IsRunning tells if a goroutine is inside Run.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

// IsLocked tells if a controller currently holds the engine.
func (e *Engine) IsLocked() bool {
	return e.locked.Load()
}

// Pause makes the loop park at the next boundary until Continue or StepFor.
func (e *Engine) Pause() {
	e.ctrlLock.Lock()
	e.paused = true
	e.hasStepLimit = false
	e.ctrlLock.Unlock()
}

// Continue resumes a paused engine.
func (e *Engine) Continue() {
	e.ctrlLock.Lock()
	e.paused = false
	e.hasStepLimit = false
	e.ctrlLock.Unlock()

	e.poke()
}

// StepFor lets the engine run every activation due within d picoseconds from
// now and then pause, with the current time moved to the end of the window.
func (e *Engine) StepFor(d VTimeInPS) {
	if d < 0 {
		panic("timing: cannot step backward")
	}

	e.ctrlLock.Lock()
	e.paused = false
	e.hasStepLimit = true
	e.stepLimit = e.readNow() + d
	e.ctrlLock.Unlock()

	e.poke()
}

// IsPaused tells if the engine is paused.
func (e *Engine) IsPaused() bool {
	e.ctrlLock.Lock()
	defer e.ctrlLock.Unlock()

	return e.paused
}

// Retain adds a reference on the engine.
func (e *Engine) Retain() {
	e.refCount.Add(1)
}

// Release drops a reference. Dropping the last one stops the engine and
// notifies the end handlers.
func (e *Engine) Release() {
	n := e.refCount.Add(-1)
	if n < 0 {
		panic("timing: release without retain")
	}

	if n == 0 {
		e.Stop()
		e.Finished()
	}
}

// RefCount returns the number of references held on the engine.
func (e *Engine) RefCount() int {
	return int(e.refCount.Load())
}

// RegisterEndHandler registers a handler called when the simulation ends.
func (e *Engine) RegisterEndHandler(h EndHandler) {
	e.endHandlers = append(e.endHandlers, h)
}

// Finished notifies the end handlers. Only the first call has an effect.
func (e *Engine) Finished() {
	e.endOnce.Do(func() {
		now := e.readNow()
		for _, h := range e.endHandlers {
			h.Handle(now)
		}
	})
}
