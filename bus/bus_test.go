package bus_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cohsim/bus"
	"github.com/sarchlab/cohsim/event"
)

var tid = event.NewTransactionID(0, 1)

var _ = Describe("Bus", func() {
	Describe("single-processor shortcut", func() {
		It("echoes the request straight back", func() {
			b, err := bus.New(bus.Config{NumProcessors: 1, MemoryAccessTimeNs: 100})
			Expect(err).NotTo(HaveOccurred())

			result, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ToOriginator).NotTo(BeNil())
			Expect(result.ToOriginator.Kind).To(Equal(event.BusRd))
			Expect(b.Stats().ReqTraffic).To(Equal(uint64(1)))
		})
	})

	Describe("two processors", func() {
		var b *bus.Bus

		BeforeEach(func() {
			var err error
			b, err = bus.New(bus.Config{NumProcessors: 2, MemoryAccessTimeNs: 100})
			Expect(err).NotTo(HaveOccurred())
		})

		It("broadcasts a fresh request to every other pid", func() {
			result, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.BroadcastTo).To(Equal([]int{1}))
			Expect(result.BroadcastEvent.Kind).To(Equal(event.BusRd))
			Expect(b.Stats().ReqTraffic).To(Equal(uint64(1)))
		})

		It("resolves via cache-to-cache transfer when a peer replies non-EMPTY", func() {
			_, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())

			result, err := b.OnCacheEvent(event.BusEvent{Kind: event.Shared, Addr: 0x100, Pid: 1, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ToOriginator).NotTo(BeNil())
			Expect(result.ToOriginator.Shared).To(BeTrue())
			Expect(result.ToMemory).To(BeNil())
		})

		It("falls back to memory when every peer replies EMPTY, and keeps the entry until the memory reply", func() {
			_, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())

			result, err := b.OnCacheEvent(event.BusEvent{Kind: event.Empty, Addr: 0x100, Pid: 1, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ToMemory).NotTo(BeNil())
			Expect(b.Stats().MemoryTraffic).To(Equal(uint64(0))) // counted once, on the reply

			final, err := b.OnMemoryReply(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())
			Expect(final.ToOriginator).NotTo(BeNil())
			Expect(final.ToOriginator.Shared).To(BeFalse())
			Expect(b.Stats().MemoryTraffic).To(Equal(uint64(1)))
		})

		It("keeps totalTraffic at least as large as reqTraffic+respTraffic+memoryTraffic", func() {
			_, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())

			_, err = b.OnCacheEvent(event.BusEvent{Kind: event.Shared, Addr: 0x100, Pid: 1, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())

			stats := b.Stats()
			Expect(stats.TotalTraffic).To(BeNumerically(">=", stats.ReqTraffic+stats.RespTraffic+stats.MemoryTraffic))
		})

		It("resolves a BUS_UPGR without consulting memory even when replies are all EMPTY", func() {
			upgrTid := event.NewTransactionID(0, 2)
			_, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusUpgr, Addr: 0x200, Pid: 0, TransactionID: upgrTid})
			Expect(err).NotTo(HaveOccurred())

			result, err := b.OnCacheEvent(event.BusEvent{Kind: event.Empty, Addr: 0x200, Pid: 1, TransactionID: upgrTid})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ToOriginator).NotTo(BeNil())
			Expect(result.ToMemory).To(BeNil())
			Expect(b.Stats().MemoryTraffic).To(Equal(uint64(0)))
		})

		It("rejects a duplicate request for a transaction id already in flight", func() {
			_, err := b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).NotTo(HaveOccurred())

			_, err = b.OnCacheEvent(event.BusEvent{Kind: event.BusRd, Addr: 0x100, Pid: 0, TransactionID: tid})
			Expect(err).To(HaveOccurred())
		})
	})
})
