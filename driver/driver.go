// Package driver hands finalized and resolved fabrics to the tools that build
// them, such as netlist generators and simulator launchers.
package driver

import (
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/fabric/adapter"
)

// A Consumer builds something out of a resolved fabric.
type Consumer interface {
	Consume(build Build) error
}

// Build is what a consumer receives: a finalized descriptor and the plan of
// every connection.
type Build struct {
	ID         string
	Descriptor *fabric.Descriptor
	Plan       *adapter.FabricPlan
}

// Driver finalizes, resolves and hands the result over to consumers.
type Driver struct {
	resolver  *adapter.Resolver
	consumers []Consumer
}

// MakeDriver creates a driver with no consumers.
func MakeDriver(resolver *adapter.Resolver) Driver {
	return Driver{resolver: resolver}
}

// WithConsumer adds a consumer. Consumers run in the order they are added.
func (d Driver) WithConsumer(c Consumer) Driver {
	d.consumers = append(d.consumers[:len(d.consumers):len(d.consumers)], c)
	return d
}

// Run finalizes the descriptor if needed and resolves it. A pair that cannot
// be bridged only blocks the slave it leads to: consumers still receive the
// build and can skip blocked slaves with FabricPlan.Blocked. The returned
// error joins the resolve failures and the consumer failures.
func (d Driver) Run(desc *fabric.Descriptor) (*Build, error) {
	if !desc.Finalized() {
		err := desc.Finalize()
		if err != nil {
			return nil, err
		}
	}

	plan, err := d.resolver.ResolveFabric(desc)
	if plan == nil {
		return nil, err
	}

	build := &Build{
		ID:         xid.New().String(),
		Descriptor: desc,
		Plan:       plan,
	}

	errs := []error{err}

	for i, c := range d.consumers {
		cerr := c.Consume(*build)
		if cerr != nil {
			errs = append(errs, fmt.Errorf("consumer %d: %w", i, cerr))
		}
	}

	return build, errors.Join(errs...)
}
