package models

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/diligent/sim"
)

var _ = Describe("SpikeSource", func() {
	It("should emit the spikes inside the slice", func() {
		s := NewSpikeSource(12, 3, 7, 10)
		s.Bind(4, 0)
		out := &recordingEmitter{}

		s.Update(0, 0, 5, out)
		s.Update(5, 0, 5, out)
		s.Update(10, 0, 2, out)

		Expect(out.spikes).To(Equal([]emitted{
			{stamp: 3, sender: 4},
			{stamp: 7, sender: 4},
			{stamp: 10, sender: 4},
		}))
		Expect(s.SpikeTimes()).To(Equal([]sim.VTimeInStep{3, 7, 10, 12}))
	})

	It("should honour a slice that starts late", func() {
		s := NewSpikeSource(1, 2, 3)
		out := &recordingEmitter{}

		s.Update(0, 2, 4, out)

		Expect(out.spikes).To(HaveLen(2))
		Expect(out.spikes[0].stamp).To(Equal(sim.VTimeInStep(2)))
	})
})
