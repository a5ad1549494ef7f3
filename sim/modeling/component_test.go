package modeling

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/timing"
	"github.com/sarchlab/vpsim/sim/wiring"
)

var _ = Describe("ComponentBase", func() {
	var comp *ComponentBase

	BeforeEach(func() {
		comp = NewComponentBase("Dev")
	})

	It("should reject invalid names", func() {
		Expect(func() { NewComponentBase("dev") }).To(Panic())
	})

	It("should register ports", func() {
		in := wiring.NewWireSlave[int](comp, "In")
		out := wiring.NewWireMaster[int](comp, "Out")

		comp.AddPort("Out", out)
		comp.AddPort("In", in)

		Expect(comp.GetPortByName("In")).To(BeIdenticalTo(in))
		Expect(comp.Ports()).To(Equal([]wiring.Port{in, out}))

		_, found := comp.LookupPort("Missing")
		Expect(found).To(BeFalse())
	})

	It("should panic on duplicated ports", func() {
		comp.AddPort("In", wiring.NewWireSlave[int](comp, "In"))

		Expect(func() {
			comp.AddPort("In", wiring.NewWireSlave[int](comp, "In"))
		}).To(Panic())
	})

	It("should panic when a port is registered under another name", func() {
		Expect(func() {
			comp.AddPort("Out", wiring.NewWireSlave[int](comp, "In"))
		}).To(Panic())
	})

	It("should panic on unknown ports", func() {
		Expect(func() { comp.GetPortByName("Nope") }).To(Panic())
	})

	It("should panic when scheduling without a clock", func() {
		Expect(func() { comp.Cycles() }).To(Panic())
	})

	It("should schedule on its clock", func() {
		engine := timing.NewEngine()
		clk := clock.MakeBuilder().WithEngine(engine).WithPeriod(5).Build("Clk")
		comp.SetClock(clk)

		var firedAt timing.VTimeInPS
		evt := clock.NewEvent(comp, func(any, *clock.Event) {
			firedAt = comp.CurrentTime()
		})
		comp.EventEnqueue(evt, 3)

		cancelled := clock.NewEvent(comp, func(any, *clock.Event) {
			Fail("cancelled event fired")
		})
		comp.EventEnqueue(cancelled, 1)
		comp.EventCancel(cancelled)

		engine.Run()

		Expect(firedAt).To(Equal(timing.VTimeInPS(15)))
		Expect(comp.Cycles()).To(Equal(int64(4)))
	})
})

var _ = Describe("TickingComponent", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *timing.Engine
		clk      *clock.Engine
		ticker   *MockTicker
		tc       *TickingComponent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = timing.NewEngine()
		clk = clock.MakeBuilder().WithEngine(engine).WithPeriod(10).Build("Clk")
		ticker = NewMockTicker(mockCtrl)
		tc = NewTickingComponent("Worker", clk, ticker)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should tick while making progress", func() {
		gomock.InOrder(
			ticker.EXPECT().Tick().Return(true),
			ticker.EXPECT().Tick().Return(true),
			ticker.EXPECT().Tick().Return(false),
		)

		tc.TickLater()
		engine.Run()

		Expect(engine.CurrentTime()).To(Equal(timing.VTimeInPS(30)))
		Expect(tc.IsTicking()).To(BeFalse())
	})

	It("should not schedule a second tick", func() {
		ticker.EXPECT().Tick().Return(false).Times(1)

		tc.TickNow()
		tc.TickNow()
		tc.TickLater()

		engine.Run()

		Expect(engine.CurrentTime()).To(Equal(timing.VTimeInPS(0)))
	})
})
