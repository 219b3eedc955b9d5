// Package decl reads fabric declarations from YAML and turns them into
// finalized fabric descriptors.
package decl

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Number is an unsigned integer that can be written in YAML as a plain
// integer or as a string in any Go integer syntax, such as "0x1000".
type Number uint64

// UnmarshalYAML accepts integers and integer strings.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(node.Value), 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
	}

	*n = Number(v)

	return nil
}

// MarshalYAML writes the number in hexadecimal.
func (n Number) MarshalYAML() (any, error) {
	return fmt.Sprintf("0x%x", uint64(n)), nil
}

// File is a whole fabric declaration.
type File struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description,omitempty"`
	AddressWidth uint32     `yaml:"address_width"`
	AllocBase    Number     `yaml:"alloc_base"`
	Endpoints    []Endpoint `yaml:"endpoints"`
}

// Endpoint declares one master or slave. Widths left out take the defaults of
// the file: a 32-bit data bus, the file's address width and, for AXI, a 1-bit
// ID.
type Endpoint struct {
	Name         string   `yaml:"name"`
	Role         string   `yaml:"role"`
	Protocol     string   `yaml:"protocol"`
	DataWidth    uint32   `yaml:"data_width,omitempty"`
	AddressWidth uint32   `yaml:"address_width,omitempty"`
	IDWidth      *uint32  `yaml:"id_width,omitempty"`
	ClockDomain  string   `yaml:"clock_domain,omitempty"`
	Buffer       string   `yaml:"buffer,omitempty"`
	Region       *Region  `yaml:"region,omitempty"`
	Switch       *Switch  `yaml:"switch,omitempty"`
	Connects     []string `yaml:"connects,omitempty"`
}

// Switch declares a crossbar or an interconnect behind a slave. Each port gets
// a window of the slave region, given as an offset from the slave base.
type Switch struct {
	Kind  string `yaml:"kind"`
	Ports []Port `yaml:"ports"`
}

// Port declares one downstream port of a switch. Widths and the clock domain
// left out are those of the slave.
type Port struct {
	Name         string `yaml:"name"`
	Offset       Number `yaml:"offset"`
	Size         Number `yaml:"size"`
	DataWidth    uint32 `yaml:"data_width,omitempty"`
	AddressWidth uint32 `yaml:"address_width,omitempty"`
	ClockDomain  string `yaml:"clock_domain,omitempty"`
}

// Region declares the placement of a slave. A region without a base is
// allocated.
type Region struct {
	Base *Number `yaml:"base,omitempty"`
	Size Number  `yaml:"size"`
}

// ConnectAll is the connection target that stands for every slave.
const ConnectAll = "*"

// Parse decodes a declaration. Unknown fields are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	f := &File{}

	err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("parsing fabric declaration: %w", err)
	}

	return f, nil
}

// Load reads and decodes a declaration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if f.Name == "" {
		f.Name = path
	}

	return f, nil
}
