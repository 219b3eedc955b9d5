package fabric

import (
	"fmt"
	"math/bits"
)

// Spec holds the ranges of parameters that the fabric supports.
type Spec struct {
	// Address space shared by all slaves.
	AddressWidth uint32
	AllocBase    uint64

	// Data widths are powers of two between MinDataWidth and the limit of
	// the endpoint's protocol.
	MinDataWidth     uint32
	MaxDataWidth     uint32
	MaxLiteDataWidth uint32
	MaxWishboneWidth uint32
	MaxEndpointAddr  uint32
	MaxIDWidth       uint32
}

// Validate checks that the spec itself is usable.
func (s Spec) Validate() error {
	if s.AddressWidth == 0 || s.AddressWidth > 64 {
		return fmt.Errorf("address width must be between 1 and 64")
	}

	if !isPow2(s.MinDataWidth) || s.MinDataWidth < 8 {
		return fmt.Errorf("min data width must be a power of two >= 8")
	}

	for _, w := range []uint32{s.MaxDataWidth, s.MaxLiteDataWidth, s.MaxWishboneWidth} {
		if !isPow2(w) || w < s.MinDataWidth {
			return fmt.Errorf("max data widths must be powers of two >= %d",
				s.MinDataWidth)
		}
	}

	if s.MaxEndpointAddr == 0 || s.MaxEndpointAddr > 64 {
		return fmt.Errorf("max endpoint address width must be between 1 and 64")
	}

	if s.MaxIDWidth == 0 {
		return fmt.Errorf("max id width must be > 0")
	}

	return nil
}

// DefaultSpec returns a Spec for a 32-bit SoC bus.
func DefaultSpec() Spec {
	return Spec{
		AddressWidth:     32,
		AllocBase:        0,
		MinDataWidth:     8,
		MaxDataWidth:     1024,
		MaxLiteDataWidth: 64,
		MaxWishboneWidth: 64,
		MaxEndpointAddr:  64,
		MaxIDWidth:       32,
	}
}

// MaxDataWidthOf returns the widest data bus the protocol supports.
func (s Spec) MaxDataWidthOf(p Protocol) uint32 {
	switch p {
	case AXILite:
		return s.MaxLiteDataWidth
	case Wishbone:
		return s.MaxWishboneWidth
	default:
		return s.MaxDataWidth
	}
}

// CheckEndpoint returns the reasons why the endpoint parameters fall outside
// the supported ranges.
func (s Spec) CheckEndpoint(e Endpoint) []string {
	var reasons []string

	if e.Protocol < 0 || e.Protocol >= numProtocols {
		reasons = append(reasons, fmt.Sprintf("unknown protocol %s", e.Protocol))
		return reasons
	}

	maxData := s.MaxDataWidthOf(e.Protocol)
	if !isPow2(e.DataWidth) || e.DataWidth < s.MinDataWidth ||
		e.DataWidth > maxData {
		reasons = append(reasons, fmt.Sprintf(
			"data width %d must be a power of two between %d and %d for %s",
			e.DataWidth, s.MinDataWidth, maxData, e.Protocol))
	}

	if e.AddressWidth == 0 || e.AddressWidth > s.MaxEndpointAddr {
		reasons = append(reasons, fmt.Sprintf(
			"address width %d must be between 1 and %d",
			e.AddressWidth, s.MaxEndpointAddr))
	}

	switch {
	case e.Protocol.HasID() && (e.IDWidth == 0 || e.IDWidth > s.MaxIDWidth):
		reasons = append(reasons, fmt.Sprintf(
			"id width %d must be between 1 and %d for %s",
			e.IDWidth, s.MaxIDWidth, e.Protocol))
	case !e.Protocol.HasID() && e.IDWidth != 0:
		reasons = append(reasons, fmt.Sprintf(
			"id width %d must be 0 for %s", e.IDWidth, e.Protocol))
	}

	return reasons
}

func isPow2(v uint32) bool {
	return v != 0 && bits.OnesCount32(v) == 1
}
