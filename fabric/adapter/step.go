package adapter

import (
	"fmt"

	"github.com/sarchlab/axifabric/fabric"
)

// StepKind is the kind of bridging component that a step inserts.
type StepKind int

// All the step kinds, in the order they appear in a plan.
const (
	ProtocolConversion StepKind = iota
	WidthConversion
	ClockCrossing
	RegisterSlice
	FIFO
	Crossbar
	Interconnect
)

func (k StepKind) String() string {
	switch k {
	case ProtocolConversion:
		return "protocol"
	case WidthConversion:
		return "width"
	case ClockCrossing:
		return "cdc"
	case RegisterSlice:
		return "register"
	case FIFO:
		return "fifo"
	case Crossbar:
		return "crossbar"
	case Interconnect:
		return "interconnect"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// A Step is one bridging component on the way from a master to a slave.
type Step struct {
	Kind StepKind `json:"kind"`

	// Protocol is the protocol on the slave side of the step. For protocol
	// conversions, From is the protocol on the master side.
	Protocol fabric.Protocol `json:"protocol"`
	From     fabric.Protocol `json:"from"`

	// Width is the data width the component is sized for. Width conversions
	// go from FromWidth to ToWidth and are sized to the wider side.
	Width     uint32 `json:"width"`
	FromWidth uint32 `json:"from_width,omitempty"`
	ToWidth   uint32 `json:"to_width,omitempty"`

	FromDomain string `json:"from_domain,omitempty"`
	ToDomain   string `json:"to_domain,omitempty"`

	// Ports is the number of downstream ports of a switch.
	Ports int `json:"ports,omitempty"`
}

func (s Step) String() string {
	switch s.Kind {
	case ProtocolConversion:
		return fmt.Sprintf("protocol %s->%s (%db)", s.From, s.Protocol, s.Width)
	case WidthConversion:
		return fmt.Sprintf("width %d->%d (%s, %db)",
			s.FromWidth, s.ToWidth, s.Protocol, s.Width)
	case ClockCrossing:
		return fmt.Sprintf("cdc %s->%s (%s, %db)",
			s.FromDomain, s.ToDomain, s.Protocol, s.Width)
	case Crossbar, Interconnect:
		return fmt.Sprintf("%s %d ports (%s, %db)",
			s.Kind, s.Ports, s.Protocol, s.Width)
	default:
		return fmt.Sprintf("%s (%s, %db)", s.Kind, s.Protocol, s.Width)
	}
}

// Requirement summarizes which kinds of conversion a pair needs.
type Requirement struct {
	WidthConversion    bool
	ProtocolConversion bool
}

// RequirementOf derives the requirement of a master and slave pair.
func RequirementOf(master, slave fabric.Endpoint) Requirement {
	return Requirement{
		WidthConversion:    master.DataWidth != slave.DataWidth,
		ProtocolConversion: master.Protocol != slave.Protocol,
	}
}

// A Plan is the ordered list of steps between a master and a slave. A plan
// without steps is a direct connection.
type Plan struct {
	Master string `json:"master"`
	Slave  string `json:"slave"`
	Steps  []Step `json:"steps"`
}

// Direct tells whether the master connects to the slave without any adapter.
func (p Plan) Direct() bool {
	return len(p.Steps) == 0
}

// Count returns the number of steps of the given kind.
func (p Plan) Count(kind StepKind) int {
	n := 0

	for _, s := range p.Steps {
		if s.Kind == kind {
			n++
		}
	}

	return n
}

func (p Plan) String() string {
	if p.Direct() {
		return fmt.Sprintf("%s -> %s: direct", p.Master, p.Slave)
	}

	s := fmt.Sprintf("%s -> %s:", p.Master, p.Slave)
	for i, step := range p.Steps {
		if i > 0 {
			s += ","
		}

		s += " " + step.String()
	}

	return s
}

// UnsupportedConversionError reports a master and slave pair that no chain of
// adapters can bridge.
type UnsupportedConversionError struct {
	Master string
	Slave  string
	Reason string
}

func (e *UnsupportedConversionError) Error() string {
	return fmt.Sprintf("cannot bridge %s -> %s: %s",
		e.Master, e.Slave, e.Reason)
}
