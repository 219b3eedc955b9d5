package fabric

import (
	"fmt"
	"strings"

	"github.com/sarchlab/axifabric/addrmap"
)

// SwitchKind is the kind of switch that splits the region of a slave between
// several downstream ports.
type SwitchKind int

// All the switch kinds. A crossbar serves its ports in parallel while an
// interconnect shares one path between them.
const (
	Crossbar SwitchKind = iota
	Interconnect
)

func (k SwitchKind) String() string {
	switch k {
	case Crossbar:
		return "crossbar"
	case Interconnect:
		return "interconnect"
	default:
		return fmt.Sprintf("SwitchKind(%d)", int(k))
	}
}

// ParseSwitchKind converts a switch name into a SwitchKind.
func ParseSwitchKind(s string) (SwitchKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "crossbar", "xbar":
		return Crossbar, nil
	case "interconnect", "int":
		return Interconnect, nil
	default:
		return 0, fmt.Errorf("unknown switch %q", s)
	}
}

// switchProtocols lists the protocols for which each switch exists.
var switchProtocols = map[SwitchKind][]Protocol{
	Crossbar:     {AXI, AXILite},
	Interconnect: {AXI, AXILite},
}

// A Port is one downstream port of a switch. It owns the window
// [Offset, Offset+Size) of the slave region. Widths and the clock domain left
// zero are those of the slave.
type Port struct {
	Name         string `json:"name"`
	Offset       uint64 `json:"offset"`
	Size         uint64 `json:"size"`
	DataWidth    uint32 `json:"data_width,omitempty"`
	AddressWidth uint32 `json:"address_width,omitempty"`
	ClockDomain  string `json:"clock_domain,omitempty"`
}

// A Switch sits behind a slave and decodes the slave region once more to pick
// one of its ports.
type Switch struct {
	Kind  SwitchKind `json:"kind"`
	Ports []Port     `json:"ports"`
}

// PortRegionName is the name of the sub-region that a port of a slave owns.
func PortRegionName(slave, port string) string {
	return slave + "." + port
}

// portOf fills the fields that a port inherits from its slave.
func portOf(slave Endpoint, p Port) Port {
	if p.DataWidth == 0 {
		p.DataWidth = slave.DataWidth
	}

	if p.AddressWidth == 0 {
		p.AddressWidth = slave.AddressWidth
	}

	if p.ClockDomain == "" {
		p.ClockDomain = slave.Domain()
	}

	return p
}

// checkSwitch checks the ports of the switch behind a bound slave and returns
// the sub-regions they own. All the interfaces of a switch share one clock,
// one address width and one data width.
func checkSwitch(slave Endpoint, region addrmap.Region) ([]addrmap.Region, []error) {
	sw := slave.Switch
	fail := func(format string, args ...any) error {
		return invalid(slave.Name, "%s: %s", sw.Kind, fmt.Sprintf(format, args...))
	}

	if !contains(switchProtocols[sw.Kind], slave.Protocol) {
		return nil, []error{fail("no %s exists for %s", sw.Kind, slave.Protocol)}
	}

	if len(sw.Ports) == 0 {
		return nil, []error{fail("switch has no ports")}
	}

	var (
		errs []error
		subs []addrmap.Region
	)

	names := make(map[string]bool)
	for _, declared := range sw.Ports {
		p := portOf(slave, declared)

		if p.Name == "" {
			errs = append(errs, fail("port name must not be empty"))
			continue
		}

		if names[p.Name] {
			errs = append(errs, fail("port %s declared twice", p.Name))
			continue
		}
		names[p.Name] = true

		if p.ClockDomain != slave.Domain() {
			errs = append(errs, fail("port %s has clock domain %s, "+
				"should be %s", p.Name, p.ClockDomain, slave.Domain()))
		}

		if p.AddressWidth != slave.AddressWidth {
			errs = append(errs, fail("port %s has address width %d, "+
				"should be %d", p.Name, p.AddressWidth, slave.AddressWidth))
		}

		if p.DataWidth != slave.DataWidth {
			errs = append(errs, fail("port %s has data width %d, "+
				"should be %d", p.Name, p.DataWidth, slave.DataWidth))
		}

		sub := addrmap.Region{
			Name: PortRegionName(slave.Name, p.Name),
			Base: region.Base + p.Offset,
			Size: p.Size,
		}

		if p.Offset >= region.Size || !addrmap.Inside(region, sub) {
			errs = append(errs, fail("port %s window +0x%x size 0x%x is not "+
				"inside %s", p.Name, p.Offset, p.Size, region))
			continue
		}

		overlapping := false
		for _, other := range subs {
			if other.Overlaps(sub) {
				errs = append(errs, &addrmap.OverlapError{
					Existing:  other,
					Requested: sub,
				})
				overlapping = true
			}
		}

		if !overlapping {
			subs = append(subs, sub)
		}
	}

	return subs, errs
}

func contains(list []Protocol, p Protocol) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}

	return false
}
