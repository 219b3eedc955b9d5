package adapter

import (
	"errors"

	"github.com/sarchlab/axifabric/fabric"
)

// ErrNotFinalized is returned when a fabric is resolved before Finalize.
var ErrNotFinalized = errors.New("fabric descriptor is not finalized")

// FabricPlan holds the plans of every connected pair of a fabric and the pairs
// that could not be bridged.
type FabricPlan struct {
	Plans  []Plan
	Failed []*UnsupportedConversionError
}

// Blocked tells whether any connection into the slave failed to resolve. The
// region of a blocked slave cannot be built, while other regions still can.
func (p *FabricPlan) Blocked(slave string) bool {
	for _, f := range p.Failed {
		if f.Slave == slave {
			return true
		}
	}

	return false
}

// PlansTo returns the resolved plans that end at the slave.
func (p *FabricPlan) PlansTo(slave string) []Plan {
	var out []Plan

	for _, plan := range p.Plans {
		if plan.Slave == slave {
			out = append(out, plan)
		}
	}

	return out
}

// Err joins all the failures, or returns nil if every pair resolved.
func (p *FabricPlan) Err() error {
	if len(p.Failed) == 0 {
		return nil
	}

	errs := make([]error, len(p.Failed))
	for i, f := range p.Failed {
		errs[i] = f
	}

	return errors.Join(errs...)
}

// ResolveFabric resolves every connection of a finalized descriptor, master by
// master and slave by slave in registration order. A pair that fails does not
// stop the others; the returned plan always holds every pair that resolved and
// the error joins every failure.
func (r *Resolver) ResolveFabric(d *fabric.Descriptor) (*FabricPlan, error) {
	if !d.Finalized() {
		return nil, ErrNotFinalized
	}

	plan := &FabricPlan{}

	for _, m := range d.Masters() {
		master := d.Endpoint(m)

		for _, s := range d.Connections(m) {
			p, err := r.Resolve(master, d.Endpoint(s))
			if err != nil {
				var unsupported *UnsupportedConversionError
				if !errors.As(err, &unsupported) {
					return nil, err
				}

				plan.Failed = append(plan.Failed, unsupported)

				continue
			}

			plan.Plans = append(plan.Plans, p)
		}
	}

	return plan, plan.Err()
}
