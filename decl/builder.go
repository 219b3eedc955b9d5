package decl

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/hooking"
)

// Builder turns declarations into finalized descriptors.
type Builder struct {
	spec  fabric.Spec
	hooks []hooking.Hook
}

// MakeBuilder creates a builder with the default spec.
func MakeBuilder() Builder {
	return Builder{spec: fabric.DefaultSpec()}
}

// WithSpec sets the spec that declarations are checked against. The address
// width and allocation base of a declaration override those of the spec.
func (b Builder) WithSpec(spec fabric.Spec) Builder {
	b.spec = spec
	return b
}

// WithHook registers a hook on every descriptor that the builder creates.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

// Build declares every endpoint, binds every slave, connects the masters and
// finalizes the descriptor. All the problems found along the way are joined
// into the returned error. The descriptor is returned even when there are
// errors so that callers can report what was built.
func (b Builder) Build(f *File) (*fabric.Descriptor, error) {
	spec := b.spec
	if f.AddressWidth != 0 {
		spec.AddressWidth = f.AddressWidth
	}

	if f.AllocBase != 0 {
		spec.AllocBase = uint64(f.AllocBase)
	}

	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("fabric %s: %w", f.Name, err)
	}

	d := fabric.NewDescriptor(spec)
	for _, h := range b.hooks {
		d.AcceptHook(h)
	}

	var errs []error

	for _, decl := range f.Endpoints {
		err := b.declare(d, spec, decl)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, decl := range f.Endpoints {
		errs = append(errs, b.connect(d, decl)...)
	}

	err := d.Finalize()
	if err != nil {
		errs = appendNew(errs, err)
	}

	return d, errors.Join(errs...)
}

// appendNew adds the errors joined in err that are not in errs yet. Finalize
// repeats the placement errors of slaves that could not be bound.
func appendNew(errs []error, err error) []error {
	var found []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		found = joined.Unwrap()
	} else {
		found = []error{err}
	}

	for _, e := range found {
		if !slices.Contains(errs, e) {
			errs = append(errs, e)
		}
	}

	return errs
}

func (b Builder) declare(
	d *fabric.Descriptor,
	spec fabric.Spec,
	decl Endpoint,
) error {
	e, err := b.endpoint(spec, decl)
	if err != nil {
		return err
	}

	h, err := d.AddEndpoint(e)
	if err != nil {
		return err
	}

	if e.Role == fabric.Master {
		if decl.Region != nil {
			return &fabric.ValidationError{
				Endpoint: e.Name,
				Reason:   "masters cannot declare a region",
			}
		}

		return nil
	}

	if decl.Region == nil {
		return &fabric.ValidationError{
			Endpoint: e.Name,
			Reason:   "slave declares no region",
		}
	}

	if decl.Region.Base == nil {
		_, err = d.BindSlaveAuto(h, uint64(decl.Region.Size))
		return err
	}

	return d.BindSlave(h, uint64(*decl.Region.Base), uint64(decl.Region.Size))
}

func (b Builder) endpoint(spec fabric.Spec, decl Endpoint) (fabric.Endpoint, error) {
	e := fabric.Endpoint{
		Name:         decl.Name,
		DataWidth:    decl.DataWidth,
		AddressWidth: decl.AddressWidth,
		ClockDomain:  decl.ClockDomain,
	}

	var err error

	e.Role, err = fabric.ParseRole(decl.Role)
	if err != nil {
		return e, &fabric.ValidationError{Endpoint: decl.Name, Reason: err.Error()}
	}

	e.Protocol, err = fabric.ParseProtocol(decl.Protocol)
	if err != nil {
		return e, &fabric.ValidationError{Endpoint: decl.Name, Reason: err.Error()}
	}

	e.Buffer, err = fabric.ParseBuffer(decl.Buffer)
	if err != nil {
		return e, &fabric.ValidationError{Endpoint: decl.Name, Reason: err.Error()}
	}

	if decl.Switch != nil {
		e.Switch, err = makeSwitch(*decl.Switch)
		if err != nil {
			return e, &fabric.ValidationError{Endpoint: decl.Name, Reason: err.Error()}
		}
	}

	if e.DataWidth == 0 {
		e.DataWidth = 32
	}

	if e.AddressWidth == 0 {
		e.AddressWidth = spec.AddressWidth
	}

	switch {
	case decl.IDWidth != nil:
		e.IDWidth = *decl.IDWidth
	case e.Protocol.HasID():
		e.IDWidth = 1
	}

	return e, nil
}

func makeSwitch(decl Switch) (*fabric.Switch, error) {
	kind, err := fabric.ParseSwitchKind(decl.Kind)
	if err != nil {
		return nil, err
	}

	sw := &fabric.Switch{Kind: kind}
	for _, p := range decl.Ports {
		sw.Ports = append(sw.Ports, fabric.Port{
			Name:         p.Name,
			Offset:       uint64(p.Offset),
			Size:         uint64(p.Size),
			DataWidth:    p.DataWidth,
			AddressWidth: p.AddressWidth,
			ClockDomain:  p.ClockDomain,
		})
	}

	return sw, nil
}

func (b Builder) connect(d *fabric.Descriptor, decl Endpoint) []error {
	if len(decl.Connects) == 0 {
		return nil
	}

	m, found := d.Lookup(decl.Name)
	if !found {
		return nil
	}

	var errs []error

	for _, target := range decl.Connects {
		if target == ConnectAll {
			if err := d.ConnectAll(m); err != nil {
				errs = append(errs, err)
			}

			continue
		}

		s, found := d.Lookup(target)
		if !found {
			errs = append(errs, &fabric.ValidationError{
				Endpoint: decl.Name,
				Reason:   fmt.Sprintf("connects to unknown endpoint %q", target),
			})

			continue
		}

		if err := d.Connect(m, s); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
