package fabric

import (
	"fmt"
	"strings"
)

// Role tells whether an endpoint issues or serves transactions.
type Role int

// All the roles.
const (
	Master Role = iota
	Slave
)

func (r Role) String() string {
	switch r {
	case Master:
		return "master"
	case Slave:
		return "slave"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole converts a role name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "master", "manager":
		return Master, nil
	case "slave", "subordinate":
		return Slave, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Protocol is the bus protocol variant that an endpoint speaks.
type Protocol int

// All the protocols. AXI-Lite and Wishbone are single-transaction buses without
// ID signals.
const (
	AXI Protocol = iota
	AXILite
	Wishbone
	numProtocols
)

var protocolNames = [...]string{
	AXI:      "axi",
	AXILite:  "axi-lite",
	Wishbone: "wishbone",
}

func (p Protocol) String() string {
	if p < 0 || p >= numProtocols {
		return fmt.Sprintf("Protocol(%d)", int(p))
	}

	return protocolNames[p]
}

// HasID tells whether the protocol carries transaction IDs.
func (p Protocol) HasID() bool {
	return p == AXI
}

// ParseProtocol converts a protocol name into a Protocol.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "axi", "axi4", "axi-full":
		return AXI, nil
	case "axi-lite", "axi_lite", "axilite", "axil", "axi4-lite":
		return AXILite, nil
	case "wishbone", "wb":
		return Wishbone, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

// Buffer is the elastic stage that a slave asks for in front of itself.
type Buffer int

// All the buffers.
const (
	NoBuffer Buffer = iota
	RegisterBuffer
	FIFOBuffer
)

func (b Buffer) String() string {
	switch b {
	case NoBuffer:
		return "none"
	case RegisterBuffer:
		return "register"
	case FIFOBuffer:
		return "fifo"
	default:
		return fmt.Sprintf("Buffer(%d)", int(b))
	}
}

// ParseBuffer converts a buffer name into a Buffer. An empty name means no
// buffer.
func ParseBuffer(s string) (Buffer, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return NoBuffer, nil
	case "register", "reg", "register-slice":
		return RegisterBuffer, nil
	case "fifo":
		return FIFOBuffer, nil
	default:
		return 0, fmt.Errorf("unknown buffer %q", s)
	}
}

// DefaultClockDomain is the clock domain of endpoints that do not name one.
const DefaultClockDomain = "sys"

// An Endpoint is a declared bus participant.
type Endpoint struct {
	Name         string   `json:"name"`
	Role         Role     `json:"role"`
	Protocol     Protocol `json:"protocol"`
	DataWidth    uint32   `json:"data_width"`
	AddressWidth uint32   `json:"address_width"`
	IDWidth      uint32   `json:"id_width"`
	ClockDomain  string   `json:"clock_domain"`
	Buffer       Buffer   `json:"buffer"`

	// Switch splits the region of a slave between downstream ports.
	Switch *Switch `json:"switch,omitempty"`
}

// Domain returns the clock domain, falling back to the default one.
func (e Endpoint) Domain() string {
	if e.ClockDomain == "" {
		return DefaultClockDomain
	}

	return e.ClockDomain
}

func (e Endpoint) String() string {
	s := fmt.Sprintf("%s %s %s d%d a%d", e.Role, e.Name, e.Protocol,
		e.DataWidth, e.AddressWidth)

	if e.Protocol.HasID() {
		s += fmt.Sprintf(" id%d", e.IDWidth)
	}

	return s
}

// Handle identifies an endpoint inside the descriptor that created it.
type Handle int
