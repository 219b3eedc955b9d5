package adapter

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/axifabric/fabric"
)

func endpoint(
	name string,
	role fabric.Role,
	protocol fabric.Protocol,
	dataWidth uint32,
) fabric.Endpoint {
	e := fabric.Endpoint{
		Name:         name,
		Role:         role,
		Protocol:     protocol,
		DataWidth:    dataWidth,
		AddressWidth: 32,
	}

	if protocol.HasID() {
		e.IDWidth = 8
	}

	return e
}

func kinds(p Plan) []StepKind {
	out := make([]StepKind, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Kind
	}

	return out
}

var _ = Describe("Resolver", func() {
	var (
		resolver *Resolver
	)

	BeforeEach(func() {
		resolver = NewResolver(fabric.DefaultSpec())
	})

	It("should connect matching endpoints directly", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 32)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(plan.Direct()).To(BeTrue())
		Expect(RequirementOf(m, s)).To(Equal(Requirement{}))
		Expect(plan.String()).To(Equal("m -> s: direct"))
	})

	It("should insert one width conversion sized to the wider side", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 64)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(plan.Steps).To(HaveLen(1))
		Expect(plan.Steps[0].Kind).To(Equal(WidthConversion))
		Expect(plan.Steps[0].Width).To(Equal(uint32(64)))
		Expect(plan.Steps[0].FromWidth).To(Equal(uint32(32)))
		Expect(plan.Steps[0].ToWidth).To(Equal(uint32(64)))
		Expect(RequirementOf(m, s)).To(Equal(Requirement{WidthConversion: true}))
	})

	It("should size a narrowing conversion to the master side", func() {
		m := endpoint("m", fabric.Master, fabric.AXILite, 64)
		s := endpoint("s", fabric.Slave, fabric.AXILite, 32)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(plan.Steps).To(HaveLen(1))
		Expect(plan.Steps[0].Width).To(Equal(uint32(64)))
	})

	It("should convert the protocol before the width", func() {
		m := endpoint("m", fabric.Master, fabric.AXILite, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 64)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal(
			[]StepKind{ProtocolConversion, WidthConversion}))
		Expect(plan.Steps[0].From).To(Equal(fabric.AXILite))
		Expect(plan.Steps[0].Protocol).To(Equal(fabric.AXI))
		Expect(plan.Steps[1].Protocol).To(Equal(fabric.AXI))
		Expect(RequirementOf(m, s)).To(Equal(
			Requirement{WidthConversion: true, ProtocolConversion: true}))
		Expect(plan.String()).To(Equal("m -> s: protocol axi-lite->axi (32b), " +
			"width 32->64 (axi, 64b)"))
	})

	It("should convert the protocol only when widths match", func() {
		m := endpoint("m", fabric.Master, fabric.AXILite, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 32)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal([]StepKind{ProtocolConversion}))
	})

	It("should chain converters through axi-lite", func() {
		m := endpoint("m", fabric.Master, fabric.Wishbone, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 128)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal([]StepKind{
			ProtocolConversion, ProtocolConversion, WidthConversion}))
		Expect(plan.Steps[0].Protocol).To(Equal(fabric.AXILite))
		Expect(plan.Steps[1].Protocol).To(Equal(fabric.AXI))
	})

	It("should refuse to truncate axi ids", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 32)
		s.IDWidth = 1

		_, err := resolver.Resolve(m, s)

		var unsupported *UnsupportedConversionError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
		Expect(unsupported.Master).To(Equal("m"))
		Expect(unsupported.Slave).To(Equal("s"))
		Expect(unsupported.Reason).To(Equal("id width 8 would be truncated to 1"))
	})

	It("should drop ids through an axi-lite conversion", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 32)
		s := endpoint("s", fabric.Slave, fabric.AXILite, 32)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal([]StepKind{ProtocolConversion}))
	})

	It("should refuse different address widths", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 32)
		s := endpoint("s", fabric.Slave, fabric.AXI, 32)
		s.AddressWidth = 64

		_, err := resolver.Resolve(m, s)

		var unsupported *UnsupportedConversionError
		Expect(errors.As(err, &unsupported)).To(BeTrue())
	})

	It("should narrow a wide master before an axi-lite leg", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 128)
		s := endpoint("s", fabric.Slave, fabric.AXILite, 32)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal(
			[]StepKind{WidthConversion, ProtocolConversion}))
		Expect(plan.Steps[0].String()).To(Equal("width 128->32 (axi, 128b)"))
		Expect(plan.Steps[1].String()).To(Equal("protocol axi->axi-lite (32b)"))
	})

	It("should narrow to the leg limit and widen into the slave", func() {
		m := endpoint("m", fabric.Master, fabric.AXI, 256)
		s := endpoint("s", fabric.Slave, fabric.Wishbone, 64)

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal([]StepKind{
			WidthConversion, ProtocolConversion, ProtocolConversion}))
		Expect(plan.Steps[0].ToWidth).To(Equal(uint32(64)))
		Expect(plan.Steps[2].Width).To(Equal(uint32(64)))
	})

	Context("when clock domains differ", func() {
		It("should cross on the axi-lite master side", func() {
			m := endpoint("m", fabric.Master, fabric.AXILite, 32)
			s := endpoint("s", fabric.Slave, fabric.AXI, 32)
			s.ClockDomain = "eth"

			plan, err := resolver.Resolve(m, s)

			Expect(err).ToNot(HaveOccurred())
			Expect(kinds(plan)).To(Equal(
				[]StepKind{ClockCrossing, ProtocolConversion}))
			Expect(plan.Steps[0].FromDomain).To(Equal("sys"))
			Expect(plan.Steps[0].ToDomain).To(Equal("eth"))
		})

		It("should cross after converting into axi-lite", func() {
			m := endpoint("m", fabric.Master, fabric.Wishbone, 32)
			s := endpoint("s", fabric.Slave, fabric.AXI, 32)
			s.ClockDomain = "eth"

			plan, err := resolver.Resolve(m, s)

			Expect(err).ToNot(HaveOccurred())
			Expect(kinds(plan)).To(Equal([]StepKind{
				ProtocolConversion, ClockCrossing, ProtocolConversion}))
		})

		It("should cross on the axi-lite slave side", func() {
			m := endpoint("m", fabric.Master, fabric.AXI, 32)
			s := endpoint("s", fabric.Slave, fabric.AXILite, 32)
			s.ClockDomain = "eth"

			plan, err := resolver.Resolve(m, s)

			Expect(err).ToNot(HaveOccurred())
			Expect(kinds(plan)).To(Equal(
				[]StepKind{ProtocolConversion, ClockCrossing}))
		})

		It("should fail between two full axi endpoints", func() {
			m := endpoint("m", fabric.Master, fabric.AXI, 32)
			s := endpoint("s", fabric.Slave, fabric.AXI, 32)
			s.ClockDomain = "eth"

			_, err := resolver.Resolve(m, s)

			var unsupported *UnsupportedConversionError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
		})
	})

	Context("when the slave asks for a buffer", func() {
		It("should put the register slice last", func() {
			m := endpoint("m", fabric.Master, fabric.AXILite, 32)
			s := endpoint("s", fabric.Slave, fabric.AXI, 32)
			s.Buffer = fabric.RegisterBuffer

			plan, err := resolver.Resolve(m, s)

			Expect(err).ToNot(HaveOccurred())
			Expect(kinds(plan)).To(Equal(
				[]StepKind{ProtocolConversion, RegisterSlice}))
		})

		It("should add a fifo in front of an axi slave", func() {
			m := endpoint("m", fabric.Master, fabric.AXI, 32)
			s := endpoint("s", fabric.Slave, fabric.AXI, 32)
			s.Buffer = fabric.FIFOBuffer

			plan, err := resolver.Resolve(m, s)

			Expect(err).ToNot(HaveOccurred())
			Expect(kinds(plan)).To(Equal([]StepKind{FIFO}))
		})

		It("should refuse a fifo in front of an axi-lite slave", func() {
			m := endpoint("m", fabric.Master, fabric.AXILite, 32)
			s := endpoint("s", fabric.Slave, fabric.AXILite, 32)
			s.Buffer = fabric.FIFOBuffer

			_, err := resolver.Resolve(m, s)

			Expect(err).To(MatchError(ContainSubstring(
				"no fifo stage exists for axi-lite")))
		})
	})
})

var _ = Describe("Resolver with switches", func() {
	var (
		resolver *Resolver
	)

	BeforeEach(func() {
		resolver = NewResolver(fabric.DefaultSpec())
	})

	It("should end the plan at the crossbar behind the slave", func() {
		m := endpoint("cpu", fabric.Master, fabric.AXILite, 32)
		s := endpoint("axil_ram_xbar", fabric.Slave, fabric.AXILite, 32)
		s.Buffer = fabric.RegisterBuffer
		s.Switch = &fabric.Switch{
			Kind: fabric.Crossbar,
			Ports: []fabric.Port{
				{Name: "ram0", Size: 0x1000},
				{Name: "ram1", Offset: 0x1000, Size: 0x1000},
			},
		}

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal([]StepKind{RegisterSlice, Crossbar}))
		Expect(plan.Steps[1].Ports).To(Equal(2))
		Expect(plan.String()).To(Equal("cpu -> axil_ram_xbar: " +
			"register (axi-lite, 32b), crossbar 2 ports (axi-lite, 32b)"))
	})

	It("should place an interconnect after the protocol conversion", func() {
		m := endpoint("cpu", fabric.Master, fabric.AXILite, 32)
		s := endpoint("axi_int", fabric.Slave, fabric.AXI, 32)
		s.IDWidth = 1
		s.Switch = &fabric.Switch{
			Kind:  fabric.Interconnect,
			Ports: []fabric.Port{{Name: "a", Size: 0x1000}},
		}

		plan, err := resolver.Resolve(m, s)

		Expect(err).ToNot(HaveOccurred())
		Expect(kinds(plan)).To(Equal(
			[]StepKind{ProtocolConversion, Interconnect}))
		Expect(plan.Steps[1].Protocol).To(Equal(fabric.AXI))
		Expect(plan.Count(Interconnect)).To(Equal(1))
	})
})
