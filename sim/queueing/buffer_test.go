package queueing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpsim/sim/hooking"
)

func mustPeek(buf *Buffer[int]) int {
	e, ok := buf.Peek()
	Expect(ok).To(BeTrue())

	return e
}

func mustPop(buf *Buffer[int]) int {
	e, ok := buf.Pop()
	Expect(ok).To(BeTrue())

	return e
}

var _ = Describe("Buffer", func() {
	var buf *Buffer[int]

	BeforeEach(func() {
		buf = NewBuffer[int]("Buf", 2)
	})

	It("should allow push and pop", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		Expect(buf.CanPush()).To(BeTrue())
		Expect(buf.Size()).To(Equal(1))

		buf.Push(2)
		Expect(buf.CanPush()).To(BeFalse())
		Expect(buf.Size()).To(Equal(2))
		Expect(func() {
			buf.Push(3)
		}).To(Panic())

		Expect(mustPeek(buf)).To(Equal(1))
		Expect(mustPop(buf)).To(Equal(1))
		Expect(buf.Size()).To(Equal(1))
		Expect(mustPeek(buf)).To(Equal(2))
		Expect(mustPop(buf)).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))

		_, ok := buf.Peek()
		Expect(ok).To(BeFalse())
		_, ok = buf.Pop()
		Expect(ok).To(BeFalse())
	})

	It("should clear", func() {
		buf.Push(2)
		Expect(buf.Size()).To(Equal(1))

		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		_, ok := buf.Peek()
		Expect(ok).To(BeFalse())
	})

	It("should invoke hooks on push and pop", func() {
		var positions []string
		buf.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos.Name)
			Expect(ctx.Item).To(Equal(7))
		}))

		buf.Push(7)
		buf.Pop()

		Expect(positions).To(Equal([]string{"Buffer Push", "Buffer Pop"}))
	})

	It("should refuse a zero capacity", func() {
		Expect(func() { NewBuffer[int]("Buf", 0) }).To(Panic())
	})
})
