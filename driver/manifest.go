package driver

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/axifabric/addrmap"
)

// Manifest is the description of a build that external generators read.
type Manifest struct {
	Build     string             `yaml:"build"`
	Regions   []ManifestRegion   `yaml:"regions"`
	Endpoints []ManifestEndpoint `yaml:"endpoints"`
	Links     []ManifestLink     `yaml:"links"`

	// Blocked lists the slaves that some master could not be bridged to.
	// Their links are missing from Links.
	Blocked []string `yaml:"blocked,omitempty"`
}

// ManifestRegion is one entry of the memory map. The windows of switch ports
// follow the region of their slave and name it as their parent.
type ManifestRegion struct {
	Name   string `yaml:"name"`
	Base   string `yaml:"base"`
	Size   string `yaml:"size"`
	Parent string `yaml:"parent,omitempty"`
}

// ManifestEndpoint is one endpoint with its bus parameters.
type ManifestEndpoint struct {
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	Protocol     string `yaml:"protocol"`
	DataWidth    uint32 `yaml:"data_width"`
	AddressWidth uint32 `yaml:"address_width"`
	IDWidth      uint32 `yaml:"id_width,omitempty"`
	ClockDomain  string `yaml:"clock_domain"`
	Switch       string `yaml:"switch,omitempty"`
}

// ManifestLink is the chain of components between a master and a slave.
type ManifestLink struct {
	Master string   `yaml:"master"`
	Slave  string   `yaml:"slave"`
	Steps  []string `yaml:"steps,flow"`
}

// MakeManifest flattens a build into a manifest.
func MakeManifest(b Build) Manifest {
	m := Manifest{Build: b.ID}

	for _, r := range b.Descriptor.Regions().Sorted() {
		m.Regions = append(m.Regions, makeManifestRegion(r, ""))

		h, _ := b.Descriptor.Lookup(r.Name)
		for _, sub := range b.Descriptor.SubRegions(h) {
			m.Regions = append(m.Regions, makeManifestRegion(sub, r.Name))
		}
	}

	for _, e := range b.Descriptor.Endpoints() {
		me := ManifestEndpoint{
			Name:         e.Name,
			Role:         e.Role.String(),
			Protocol:     e.Protocol.String(),
			DataWidth:    e.DataWidth,
			AddressWidth: e.AddressWidth,
			IDWidth:      e.IDWidth,
			ClockDomain:  e.Domain(),
		}

		if e.Switch != nil {
			me.Switch = e.Switch.Kind.String()
		}

		m.Endpoints = append(m.Endpoints, me)
	}

	for _, p := range b.Plan.Plans {
		link := ManifestLink{Master: p.Master, Slave: p.Slave, Steps: []string{}}
		for _, s := range p.Steps {
			link.Steps = append(link.Steps, s.String())
		}

		m.Links = append(m.Links, link)
	}

	for _, h := range b.Descriptor.Slaves() {
		name := b.Descriptor.Endpoint(h).Name
		if b.Plan.Blocked(name) {
			m.Blocked = append(m.Blocked, name)
		}
	}

	return m
}

func makeManifestRegion(r addrmap.Region, parent string) ManifestRegion {
	return ManifestRegion{
		Name:   r.Name,
		Base:   fmt.Sprintf("0x%08x", r.Base),
		Size:   fmt.Sprintf("0x%x", r.Size),
		Parent: parent,
	}
}

// ManifestWriter is a consumer that writes the manifest as YAML.
type ManifestWriter struct {
	W io.Writer
}

// Consume writes the manifest of the build.
func (w ManifestWriter) Consume(b Build) error {
	enc := yaml.NewEncoder(w.W)
	enc.SetIndent(2)

	err := enc.Encode(MakeManifest(b))
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	return enc.Close()
}

// ManifestFile is a consumer that writes the manifest into a file. The file is
// only created when a build reaches the consumer.
type ManifestFile struct {
	Path string
}

// Consume creates the file and writes the manifest of the build. A partially
// written file is removed.
func (f ManifestFile) Consume(b Build) error {
	file, err := os.Create(f.Path)
	if err != nil {
		return err
	}

	err = ManifestWriter{W: file}.Consume(b)
	if cerr := file.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(f.Path)
		return err
	}

	return nil
}
