package addrmap

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
	var (
		registry *Registry
	)

	BeforeEach(func() {
		registry = NewRegistry(32)
	})

	It("should register disjoint regions", func() {
		Expect(registry.Register("axi_ram", 0x1000, 0x1000)).To(Succeed())
		Expect(registry.Register("axi_dp_ram_a", 0x2000, 0x1000)).To(Succeed())
		Expect(registry.Register("axi_dp_ram_b", 0x3000, 0x1000)).To(Succeed())

		Expect(registry.Len()).To(Equal(3))
		Expect(registry.Overlaps()).To(BeEmpty())
	})

	It("should reject an overlapping region and name both regions", func() {
		Expect(registry.Register("axi_ram", 0x1000, 0x1000)).To(Succeed())
		Expect(registry.Register("axi_dp_ram_a", 0x2000, 0x1000)).To(Succeed())

		err := registry.Register("late", 0x1800, 0x1000)

		var overlap *OverlapError
		Expect(errors.As(err, &overlap)).To(BeTrue())
		Expect(overlap.Existing.Name).To(Equal("axi_ram"))
		Expect(overlap.Requested.Name).To(Equal("late"))
		Expect(err.Error()).To(ContainSubstring("axi_ram@[0x1000, 0x2000)"))
		Expect(err.Error()).To(ContainSubstring("late@[0x1800, 0x2800)"))

		_, found := registry.Lookup("late")
		Expect(found).To(BeFalse())
	})

	It("should allow regions that only touch", func() {
		Expect(registry.Register("a", 0x0, 0x1000)).To(Succeed())
		Expect(registry.Register("b", 0x1000, 0x1000)).To(Succeed())
	})

	It("should reject a zero size", func() {
		var regionErr *RegionError
		err := registry.Register("empty", 0x1000, 0)
		Expect(errors.As(err, &regionErr)).To(BeTrue())
		Expect(regionErr.Reason).To(ContainSubstring("zero"))
	})

	It("should reject a duplicated name", func() {
		Expect(registry.Register("a", 0x0, 0x1000)).To(Succeed())

		var regionErr *RegionError
		err := registry.Register("a", 0x8000, 0x1000)
		Expect(errors.As(err, &regionErr)).To(BeTrue())
	})

	It("should reject a region outside the address space", func() {
		var regionErr *RegionError
		err := registry.Register("high", 0xffff_f000, 0x2000)
		Expect(errors.As(err, &regionErr)).To(BeTrue())

		Expect(registry.Register("top", 0xffff_f000, 0x1000)).To(Succeed())
	})

	It("should reject a region that wraps around", func() {
		wide := NewRegistry(64)

		var regionErr *RegionError
		err := wide.Register("wrap", 0xffff_ffff_ffff_f000, 0x2000)
		Expect(errors.As(err, &regionErr)).To(BeTrue())

		Expect(wide.Register("top", 0xffff_ffff_ffff_f000, 0x1000)).To(Succeed())
	})

	It("should look up regions by name", func() {
		Expect(registry.Register("axi_ram", 0x1000, 0x1000)).To(Succeed())

		region, found := registry.Lookup("axi_ram")
		Expect(found).To(BeTrue())
		Expect(region).To(Equal(Region{Name: "axi_ram", Base: 0x1000, Size: 0x1000}))
	})

	It("should keep registration order and sort by base", func() {
		Expect(registry.Register("b", 0x2000, 0x1000)).To(Succeed())
		Expect(registry.Register("a", 0x1000, 0x1000)).To(Succeed())

		Expect(registry.Regions()[0].Name).To(Equal("b"))
		Expect(registry.Sorted()[0].Name).To(Equal("a"))
	})

	Context("when allocating", func() {
		BeforeEach(func() {
			registry.WithAllocBase(0x10000)
		})

		It("should place the region at the allocation base", func() {
			region, err := registry.Allocate("axil_ram", 0x1000)

			Expect(err).ToNot(HaveOccurred())
			Expect(region.Base).To(Equal(uint64(0x10000)))
		})

		It("should skip taken ranges and keep alignment", func() {
			Expect(registry.Register("fixed", 0x10000, 0x1800)).To(Succeed())

			region, err := registry.Allocate("next", 0x1000)

			Expect(err).ToNot(HaveOccurred())
			Expect(region.Base).To(Equal(uint64(0x12000)))
		})

		It("should align to the size rounded up to a power of two", func() {
			Expect(registry.Register("fixed", 0x10000, 0x100)).To(Succeed())

			region, err := registry.Allocate("odd", 0x3000)

			Expect(err).ToNot(HaveOccurred())
			Expect(region.Base).To(Equal(uint64(0x14000)))
		})

		It("should fill a gap between regions", func() {
			Expect(registry.Register("a", 0x10000, 0x1000)).To(Succeed())
			Expect(registry.Register("c", 0x12000, 0x1000)).To(Succeed())

			region, err := registry.Allocate("b", 0x1000)

			Expect(err).ToNot(HaveOccurred())
			Expect(region.Base).To(Equal(uint64(0x11000)))
		})

		It("should fail when the space is exhausted", func() {
			small := NewRegistry(16).WithAllocBase(0x8000)
			_, err := small.Allocate("a", 0x8000)
			Expect(err).ToNot(HaveOccurred())

			var regionErr *RegionError
			_, err = small.Allocate("b", 0x1000)
			Expect(errors.As(err, &regionErr)).To(BeTrue())
			Expect(regionErr.Reason).To(Equal("address space exhausted"))
		})
	})
})
