package arbiter_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cohsim/arbiter"
	"github.com/sarchlab/cohsim/event"
)

var _ = Describe("Arbiter", func() {
	Describe("FIFO policy", func() {
		var a *arbiter.Arbiter

		BeforeEach(func() {
			var err error
			a, err = arbiter.New(arbiter.Config{Policy: arbiter.FIFO, NumProcessors: 3, MaxBusTransactions: 1})
			Expect(err).NotTo(HaveOccurred())
		})

		It("grants the first requester immediately", func() {
			pid, ok, err := a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(1))
		})

		It("queues later requesters and grants them in arrival order", func() {
			_, _, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 0})
			_, ok, _ := a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 1})
			Expect(ok).To(BeFalse())
			_, ok, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 2})
			Expect(ok).To(BeFalse())

			pid, ok, err := a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(1))

			pid, ok, err = a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(2))
		})

		It("rejects a release from a non-holder", func() {
			_, _, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 0})
			_, _, err := a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 1})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("maxBusTransactions > 1", func() {
		It("admits a second requester without waiting for the first release", func() {
			a, err := arbiter.New(arbiter.Config{Policy: arbiter.FIFO, NumProcessors: 3, MaxBusTransactions: 2})
			Expect(err).NotTo(HaveOccurred())

			_, ok, _ := a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 0})
			Expect(ok).To(BeTrue())
			pid, ok, _ := a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 1})
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(1))

			_, ok, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 2})
			Expect(ok).To(BeFalse()) // window already full at 2 live grants

			pid, ok, err = a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(2))
		})
	})

	Describe("round-robin policy", func() {
		var a *arbiter.Arbiter

		BeforeEach(func() {
			var err error
			a, err = arbiter.New(arbiter.Config{Policy: arbiter.RoundRobin, NumProcessors: 3, MaxBusTransactions: 1})
			Expect(err).NotTo(HaveOccurred())
		})

		It("resumes the search just past the last grantee instead of restarting at pid 0", func() {
			// pid 2 requests first and is granted immediately.
			pid, ok, _ := a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 2})
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(2))

			// pid 0 and pid 1 queue up while pid 2 holds the bus.
			_, _, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 0})
			_, _, _ = a.OnEvent(event.ArbEvent{Kind: event.AC, Pid: 1})

			pid, ok, err := a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(0)) // search resumes at (2+1)%3 == 0

			pid, ok, err = a.OnEvent(event.ArbEvent{Kind: event.RL, Pid: 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(pid).To(Equal(1))
		})
	})
})
