// Package fabric describes a bus fabric: the masters and slaves that take part
// in it, where each slave sits in the address map and which slaves each master
// reaches.
package fabric

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/axifabric/addrmap"
	"github.com/sarchlab/axifabric/hooking"
)

// HookPosEndpointAdded triggers after an endpoint is added. The item is the
// Endpoint.
var HookPosEndpointAdded = &hooking.HookPos{Name: "EndpointAdded"}

// HookPosSlaveBound triggers after a slave gets its region. The item is the
// Region and the detail is the Endpoint.
var HookPosSlaveBound = &hooking.HookPos{Name: "SlaveBound"}

// HookPosFinalized triggers after a successful Finalize. The item is the
// Descriptor.
var HookPosFinalized = &hooking.HookPos{Name: "Finalized"}

// Descriptor owns the endpoints and the address map of one fabric. It is built
// up with AddEndpoint, BindSlave and Connect, checked once with Finalize and
// read-only afterwards.
type Descriptor struct {
	hooking.HookableBase

	spec      Spec
	endpoints []Endpoint
	nameIndex map[string]Handle
	regions   *addrmap.Registry
	bound     map[Handle]bool
	rejected  map[Handle]error

	subRegions map[Handle][]addrmap.Region

	connections map[Handle][]Handle
	connectAll  map[Handle]bool

	finalized bool
}

// NewDescriptor creates an empty descriptor. It panics if the spec is invalid.
func NewDescriptor(spec Spec) *Descriptor {
	if err := spec.Validate(); err != nil {
		panic(err)
	}

	return &Descriptor{
		spec:        spec,
		nameIndex:   make(map[string]Handle),
		regions:     addrmap.NewRegistry(spec.AddressWidth).WithAllocBase(spec.AllocBase),
		bound:       make(map[Handle]bool),
		rejected:    make(map[Handle]error),
		connections: make(map[Handle][]Handle),
		connectAll:  make(map[Handle]bool),
	}
}

// Spec returns the spec that the descriptor checks against.
func (d *Descriptor) Spec() Spec {
	return d.spec
}

// Finalized tells whether Finalize has succeeded.
func (d *Descriptor) Finalized() bool {
	return d.finalized
}

// AddEndpoint declares a new endpoint. Its parameters are checked by Finalize.
func (d *Descriptor) AddEndpoint(e Endpoint) (Handle, error) {
	if d.finalized {
		return -1, ErrFinalized
	}

	if e.Name == "" {
		return -1, invalid("", "endpoint name must not be empty")
	}

	if e.Role != Master && e.Role != Slave {
		return -1, invalid(e.Name, "unknown role %s", e.Role)
	}

	if _, dup := d.nameIndex[e.Name]; dup {
		return -1, invalid(e.Name, "endpoint already declared")
	}

	if e.ClockDomain == "" {
		e.ClockDomain = DefaultClockDomain
	}

	if e.Switch != nil {
		if e.Role != Slave {
			return -1, invalid(e.Name, "only slaves can have a switch")
		}

		sw := *e.Switch
		sw.Ports = append([]Port(nil), sw.Ports...)
		e.Switch = &sw
	}

	h := Handle(len(d.endpoints))
	d.endpoints = append(d.endpoints, e)
	d.nameIndex[e.Name] = h

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosEndpointAdded,
		Item:   e,
	})

	return h, nil
}

// BindSlave places a slave at a fixed base. The region carries the name of the
// slave.
func (d *Descriptor) BindSlave(h Handle, base, size uint64) error {
	e, err := d.bindable(h)
	if err != nil {
		return err
	}

	err = d.regions.Register(e.Name, base, size)
	if err != nil {
		d.rejected[h] = err
		return err
	}

	d.slaveBound(h)

	return nil
}

// BindSlaveAuto places a slave at the lowest free aligned base.
func (d *Descriptor) BindSlaveAuto(h Handle, size uint64) (addrmap.Region, error) {
	e, err := d.bindable(h)
	if err != nil {
		return addrmap.Region{}, err
	}

	region, err := d.regions.Allocate(e.Name, size)
	if err != nil {
		d.rejected[h] = err
		return addrmap.Region{}, err
	}

	d.slaveBound(h)

	return region, nil
}

func (d *Descriptor) bindable(h Handle) (Endpoint, error) {
	if d.finalized {
		return Endpoint{}, ErrFinalized
	}

	e := d.Endpoint(h)
	if e.Role != Slave {
		return Endpoint{}, invalid(e.Name, "only slaves can own a region")
	}

	if d.bound[h] {
		return Endpoint{}, invalid(e.Name, "slave already has a region")
	}

	return e, nil
}

func (d *Descriptor) slaveBound(h Handle) {
	d.bound[h] = true
	delete(d.rejected, h)

	e := d.endpoints[h]
	region, _ := d.regions.Lookup(e.Name)

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosSlaveBound,
		Item:   region,
		Detail: e,
	})
}

// Connect declares that the master can reach the slave.
func (d *Descriptor) Connect(master, slave Handle) error {
	if d.finalized {
		return ErrFinalized
	}

	m, s := d.Endpoint(master), d.Endpoint(slave)
	if m.Role != Master {
		return invalid(m.Name, "connections must start at a master")
	}

	if s.Role != Slave {
		return invalid(s.Name, "connections must end at a slave")
	}

	for _, existing := range d.connections[master] {
		if existing == slave {
			return nil
		}
	}

	d.connections[master] = append(d.connections[master], slave)

	return nil
}

// ConnectAll connects the master to every slave, including the slaves that are
// added after this call.
func (d *Descriptor) ConnectAll(master Handle) error {
	if d.finalized {
		return ErrFinalized
	}

	m := d.Endpoint(master)
	if m.Role != Master {
		return invalid(m.Name, "connections must start at a master")
	}

	d.connectAll[master] = true

	return nil
}

// Lookup returns the handle of the endpoint with the given name.
func (d *Descriptor) Lookup(name string) (Handle, bool) {
	h, found := d.nameIndex[name]
	return h, found
}

// Endpoint returns the endpoint behind a handle. It panics if the handle was
// not created by this descriptor.
func (d *Descriptor) Endpoint(h Handle) Endpoint {
	if h < 0 || int(h) >= len(d.endpoints) {
		panic(fmt.Sprintf("handle %d does not belong to this descriptor", h))
	}

	return d.endpoints[h]
}

// Region returns the region of a slave.
func (d *Descriptor) Region(h Handle) (addrmap.Region, bool) {
	return d.regions.Lookup(d.Endpoint(h).Name)
}

// Regions returns the registry that holds the address map. Callers must not
// place regions in it directly.
func (d *Descriptor) Regions() *addrmap.Registry {
	return d.regions
}

// SubRegions returns the windows that the switch behind a slave gives to its
// ports, ordered by base address. It returns nil for slaves without a switch
// and before Finalize.
func (d *Descriptor) SubRegions(h Handle) []addrmap.Region {
	subs := d.subRegions[h]
	if len(subs) == 0 {
		return nil
	}

	out := make([]addrmap.Region, len(subs))
	copy(out, subs)
	sort.Slice(out, func(i, j int) bool { return out[i].Base < out[j].Base })

	return out
}

// Decoder returns a decoder over the address map that also decodes through
// the switches behind slaves.
func (d *Descriptor) Decoder() *addrmap.TreeDecoder {
	tree := addrmap.NewTreeDecoder(d.regions.Sorted())

	for _, h := range d.Slaves() {
		subs := d.SubRegions(h)
		if subs == nil {
			continue
		}

		// Finalize already checked the sub-regions.
		_, _ = tree.Nest(d.endpoints[h].Name, subs)
	}

	return tree
}

// Endpoints returns all the endpoints in registration order.
func (d *Descriptor) Endpoints() []Endpoint {
	out := make([]Endpoint, len(d.endpoints))
	copy(out, d.endpoints)

	return out
}

// Masters returns the handles of all masters in registration order.
func (d *Descriptor) Masters() []Handle {
	return d.withRole(Master)
}

// Slaves returns the handles of all slaves in registration order.
func (d *Descriptor) Slaves() []Handle {
	return d.withRole(Slave)
}

func (d *Descriptor) withRole(role Role) []Handle {
	var out []Handle

	for i, e := range d.endpoints {
		if e.Role == role {
			out = append(out, Handle(i))
		}
	}

	return out
}

// Connections returns the slaves that a master connects to, in slave
// registration order.
func (d *Descriptor) Connections(master Handle) []Handle {
	if d.connectAll[master] {
		return d.Slaves()
	}

	out := make([]Handle, len(d.connections[master]))
	copy(out, d.connections[master])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Finalize checks the whole fabric and freezes it. It reports every problem it
// finds at once, joined into one error. A descriptor that fails to finalize
// stays open so that the problems can be fixed.
func (d *Descriptor) Finalize() error {
	if d.finalized {
		return ErrFinalized
	}

	var errs []error

	subRegions := make(map[Handle][]addrmap.Region)

	for _, overlap := range d.regions.Overlaps() {
		errs = append(errs, overlap)
	}

	for i, e := range d.endpoints {
		for _, reason := range d.spec.CheckEndpoint(e) {
			errs = append(errs, invalid(e.Name, "%s", reason))
		}

		h := Handle(i)
		switch e.Role {
		case Slave:
			errs = append(errs, d.checkBound(h)...)

			region, bound := d.Region(h)
			if bound && e.Switch != nil {
				subs, swErrs := checkSwitch(e, region)
				subRegions[h] = subs
				errs = append(errs, swErrs...)
			}
		case Master:
			if err := d.checkReachable(h); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	d.subRegions = subRegions
	d.finalized = true

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosFinalized,
		Item:   d,
	})

	return nil
}

// checkBound reports a slave without a region. A slave whose placement was
// rejected is reported with the same error value that placing it returned.
func (d *Descriptor) checkBound(h Handle) []error {
	if d.bound[h] {
		return nil
	}

	if err, found := d.rejected[h]; found {
		return []error{err}
	}

	return []error{invalid(d.endpoints[h].Name, "slave has no region")}
}

// checkReachable makes sure that the master connects to at least one bound
// slave with the same address width whose region lies inside the master's
// address space. Pairs with different address widths cannot be bridged.
func (d *Descriptor) checkReachable(master Handle) error {
	m := d.endpoints[master]

	slaves := d.Connections(master)
	if len(slaves) == 0 {
		return invalid(m.Name, "master is not connected to any slave")
	}

	for _, s := range slaves {
		if d.endpoints[s].AddressWidth != m.AddressWidth {
			continue
		}

		region, found := d.Region(s)
		if found && fitsAddressWidth(region, m.AddressWidth) {
			return nil
		}
	}

	return invalid(m.Name,
		"none of the %d connected slaves is reachable with %d address bits",
		len(slaves), m.AddressWidth)
}

func fitsAddressWidth(region addrmap.Region, width uint32) bool {
	if width >= 64 {
		return true
	}

	return region.Last() < uint64(1)<<width
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("fabric with %d masters, %d slaves",
		len(d.Masters()), len(d.Slaves()))
}
