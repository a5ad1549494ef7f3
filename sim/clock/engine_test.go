package clock

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpsim/sim/hooking"
	"github.com/sarchlab/vpsim/sim/timing"
)

type dispatch struct {
	name  string
	time  timing.VTimeInPS
	cycle int64
}

type recorder struct {
	sync.Mutex
	dispatches []dispatch
}

func (r *recorder) event(name string, clk *Engine) *Event {
	return NewEvent(name, func(owner any, evt *Event) {
		r.Lock()
		defer r.Unlock()

		r.dispatches = append(r.dispatches, dispatch{
			name:  owner.(string),
			time:  clk.TimeEngine().CurrentTime(),
			cycle: evt.Cycle(),
		})
	})
}

func (r *recorder) names() []string {
	r.Lock()
	defer r.Unlock()

	names := make([]string, len(r.dispatches))
	for i, d := range r.dispatches {
		names[i] = d.name
	}

	return names
}

func (r *recorder) times() []timing.VTimeInPS {
	r.Lock()
	defer r.Unlock()

	times := make([]timing.VTimeInPS, len(r.dispatches))
	for i, d := range r.dispatches {
		times[i] = d.time
	}

	return times
}

var _ = Describe("Engine", func() {
	var (
		timeEngine *timing.Engine
		clk        *Engine
		rec        *recorder
	)

	BeforeEach(func() {
		timeEngine = timing.NewEngine()
		clk = MakeBuilder().
			WithEngine(timeEngine).
			WithPeriod(10).
			WithRingSize(4).
			Build("Clk")
		rec = &recorder{}
	})

	It("should build with defaults", func() {
		c := MakeBuilder().WithEngine(timeEngine).Build("Default")

		Expect(c.RingSize()).To(Equal(DefaultRingSize))
		Expect(c.Period()).To(Equal(timing.VTimeInPS(1000)))
		Expect(c.Freq()).To(BeNumerically("~", timing.GHz))
	})

	It("should reject ring sizes that are not powers of two", func() {
		Expect(func() {
			MakeBuilder().WithEngine(timeEngine).WithRingSize(6).Build("Bad")
		}).To(Panic())
		Expect(func() {
			MakeBuilder().WithEngine(timeEngine).WithRingSize(0).Build("Bad")
		}).To(Panic())
	})

	It("should panic without a time engine", func() {
		Expect(func() { MakeBuilder().Build("Orphan") }).To(Panic())
	})

	DescribeTable("should dispatch events exactly offset cycles later",
		func(offset int64) {
			clk.Enqueue(rec.event("E", clk), offset)

			timeEngine.Run()

			Expect(rec.times()).To(Equal(
				[]timing.VTimeInPS{timing.VTimeInPS(offset) * 10}))
			Expect(rec.dispatches[0].cycle).To(Equal(offset))
		},
		Entry("current cycle", int64(0)),
		Entry("next cycle", int64(1)),
		Entry("last ring slot", int64(3)),
		Entry("first delayed cycle", int64(4)),
		Entry("far future", int64(1000)),
	)

	It("should keep far events in the delayed queue until they are in range", func() {
		far := rec.event("Far", clk)
		near := rec.event("Near", clk)

		clk.Enqueue(far, 9)
		clk.Enqueue(near, 2)

		Expect(clk.NumDelayed()).To(Equal(1))
		Expect(clk.NumPending()).To(Equal(2))

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"Near", "Far"}))
		Expect(rec.times()).To(Equal([]timing.VTimeInPS{20, 90}))
		Expect(clk.NumPending()).To(Equal(0))
	})

	It("should sort the delayed queue by cycle and keep insertion order on ties", func() {
		clk.Enqueue(rec.event("C", clk), 30)
		clk.Enqueue(rec.event("A", clk), 10)
		clk.Enqueue(rec.event("B", clk), 10)

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"A", "B", "C"}))
		Expect(rec.times()).To(Equal([]timing.VTimeInPS{100, 100, 300}))
	})

	It("should dispatch events of a slot in FIFO order", func() {
		clk.Enqueue(rec.event("A", clk), 1)
		clk.Enqueue(rec.event("B", clk), 1)
		clk.Enqueue(rec.event("C", clk), 1)

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"A", "B", "C"}))
	})

	It("should run an event enqueued at offset zero in the same activation", func() {
		second := rec.event("Second", clk)
		first := NewEvent("First", func(any, *Event) {
			Expect(second.IsEnqueued()).To(BeFalse())
			clk.Enqueue(second, 0)
		})
		clk.Enqueue(first, 2)

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"Second"}))
		Expect(rec.times()).To(Equal([]timing.VTimeInPS{20}))
	})

	It("should mark an event as not enqueued before calling it", func() {
		var count int
		var evt *Event
		evt = NewEvent(nil, func(_ any, e *Event) {
			Expect(e.IsEnqueued()).To(BeFalse())
			count++
			if count < 5 {
				clk.Enqueue(e, 1)
			}
		})
		clk.Enqueue(evt, 0)

		timeEngine.Run()

		Expect(count).To(Equal(5))
		Expect(timeEngine.CurrentTime()).To(Equal(timing.VTimeInPS(40)))
	})

	It("should never dispatch a cancelled event", func() {
		a := rec.event("A", clk)
		b := rec.event("B", clk)
		far := rec.event("Far", clk)
		clk.Enqueue(a, 1)
		clk.Enqueue(b, 1)
		clk.Enqueue(far, 20)

		clk.Cancel(a)
		clk.Cancel(far)

		Expect(a.IsEnqueued()).To(BeFalse())
		Expect(clk.NumPending()).To(Equal(1))

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"B"}))
	})

	It("should keep the slot usable after cancelling its tail", func() {
		a := rec.event("A", clk)
		b := rec.event("B", clk)
		c := rec.event("C", clk)
		clk.Enqueue(a, 1)
		clk.Enqueue(b, 1)
		clk.Cancel(b)
		clk.Enqueue(c, 1)

		timeEngine.Run()

		Expect(rec.names()).To(Equal([]string{"A", "C"}))
	})

	It("should panic on misuse", func() {
		evt := rec.event("E", clk)

		Expect(func() { clk.Cancel(evt) }).To(Panic())
		Expect(func() { clk.Enqueue(evt, -1) }).To(Panic())

		clk.Enqueue(evt, 1)
		Expect(func() { clk.Enqueue(evt, 2) }).To(Panic())

		other := MakeBuilder().WithEngine(timeEngine).Build("Other")
		Expect(func() { other.Cancel(evt) }).To(Panic())
	})

	It("should go idle once its events are drained", func() {
		clk.Enqueue(rec.event("A", clk), 2)

		Expect(timeEngine.NumPending()).To(Equal(1))
		timeEngine.Run()

		Expect(clk.IsEnqueued()).To(BeFalse())
		Expect(timeEngine.NumPending()).To(Equal(0))
	})

	It("should wake up early for an event enqueued while waiting on a delayed one", func() {
		clk.Enqueue(rec.event("Far", clk), 50)
		Expect(clk.NextTime()).To(Equal(timing.VTimeInPS(500)))

		clk.Enqueue(rec.event("Near", clk), 3)
		Expect(clk.NextTime()).To(Equal(timing.VTimeInPS(30)))

		timeEngine.Run()

		Expect(rec.times()).To(Equal([]timing.VTimeInPS{30, 500}))
	})

	It("should invoke hooks around events", func() {
		var positions []string
		clk.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
		}))
		clk.Enqueue(rec.event("A", clk), 0)

		timeEngine.Run()

		Expect(positions).To(Equal([]string{"BeforeEvent", "AfterEvent"}))
	})

	Context("across clock domains", func() {
		var (
			fast, slow *Engine
		)

		BeforeEach(func() {
			fast = MakeBuilder().
				WithEngine(timeEngine).WithPeriod(1).WithRingSize(4).Build("Fast")
			slow = MakeBuilder().
				WithEngine(timeEngine).WithPeriod(3).WithRingSize(4).Build("Slow")
		})

		It("should resynchronize a lagging domain before it is used", func() {
			var slowCycles int64
			slowEvt := rec.event("Slow", slow)

			call := NewEvent(nil, func(any, *Event) {
				slow.Sync()
				slowCycles = slow.Cycles()
				slow.Enqueue(slowEvt, 1)
			})
			fast.Enqueue(call, 7)

			timeEngine.Run()

			Expect(slowCycles).To(Equal(int64(3)))
			Expect(rec.names()).To(Equal([]string{"Slow"}))
			Expect(rec.times()).To(Equal([]timing.VTimeInPS{12}))
			Expect(rec.dispatches[0].cycle).To(Equal(int64(4)))
		})

		It("should fire a delayed event on time while another domain ticks",
			func() {
				var slowTimes []timing.VTimeInPS
				slowLeft := 3
				slowEvt := NewEvent(nil, func(_ any, evt *Event) {
					slowTimes = append(slowTimes, timeEngine.CurrentTime())
					slowLeft--
					if slowLeft > 0 {
						slow.Enqueue(evt, 1)
					}
				})
				slow.Enqueue(slowEvt, 0)

				fast.Enqueue(rec.event("Now", fast), 0)
				fast.Enqueue(rec.event("Later", fast), 5)
				Expect(fast.NumDelayed()).To(Equal(1))

				timeEngine.Run()

				Expect(rec.names()).To(Equal([]string{"Now", "Later"}))
				Expect(rec.times()).To(Equal([]timing.VTimeInPS{0, 5}))
				Expect([]int64{rec.dispatches[0].cycle, rec.dispatches[1].cycle}).
					To(Equal([]int64{0, 5}))
				Expect(fast.NumDelayed()).To(Equal(0))
				Expect(slowTimes).To(Equal([]timing.VTimeInPS{0, 3, 6}))
			})

		It("should interleave two domains in time order", func() {
			var order []string
			var times []timing.VTimeInPS
			tick := func(clk *Engine, remaining *int) EventFunc {
				return func(owner any, evt *Event) {
					order = append(order, owner.(string))
					times = append(times, timeEngine.CurrentTime())
					*remaining--
					if *remaining > 0 {
						clk.Enqueue(evt, 1)
					}
				}
			}

			fastLeft, slowLeft := 6, 2
			fastEvt := NewEvent("Fast", tick(fast, &fastLeft))
			slowEvt := NewEvent("Slow", tick(slow, &slowLeft))

			slow.Enqueue(slowEvt, 0)
			fast.Enqueue(fastEvt, 0)

			timeEngine.Run()

			Expect(times).To(Equal([]timing.VTimeInPS{0, 0, 1, 2, 3, 3, 4, 5}))
			Expect(order).To(Equal([]string{
				"Slow", "Fast", "Fast", "Fast", "Slow", "Fast", "Fast", "Fast",
			}))
		})
	})

	Context("when a controller locks the engine", func() {
		It("should let every event of the current slot run first", func() {
			started := make(chan struct{})
			release := make(chan struct{})

			blocker := NewEvent("Blocker", func(any, *Event) {
				close(started)
				<-release
			})
			clk.Enqueue(blocker, 1)
			clk.Enqueue(rec.event("A", clk), 1)
			clk.Enqueue(rec.event("B", clk), 1)
			clk.Enqueue(rec.event("Later", clk), 2)

			done := make(chan timing.RunResult, 1)
			go func() { done <- timeEngine.Run() }()

			<-started
			locked := make(chan struct{})
			go func() {
				timeEngine.Lock()
				close(locked)
			}()

			Consistently(locked, 50*time.Millisecond).ShouldNot(BeClosed())
			close(release)
			Eventually(locked, time.Second).Should(BeClosed())

			Expect(rec.names()).To(ContainElements("A", "B"))
			Expect(rec.names()[:2]).To(Equal([]string{"A", "B"}))

			timeEngine.Unlock()
			Eventually(done, time.Second).Should(Receive())
			Expect(rec.names()).To(Equal([]string{"A", "B", "Later"}))
		})
	})
})
