// Package adapter decides which bridging components must sit between a master
// and a slave of a fabric.
package adapter

import (
	"fmt"

	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/hooking"
)

// HookPosPairResolved triggers after a pair is resolved. The item is the Plan.
var HookPosPairResolved = &hooking.HookPos{Name: "PairResolved"}

// HookPosPairFailed triggers when a pair cannot be bridged. The item is the
// UnsupportedConversionError.
var HookPosPairFailed = &hooking.HookPos{Name: "PairFailed"}

// converters lists the protocol converters that exist, in both directions.
var converters = map[fabric.Protocol][]fabric.Protocol{
	fabric.AXI:      {fabric.AXILite},
	fabric.AXILite:  {fabric.AXI, fabric.Wishbone},
	fabric.Wishbone: {fabric.AXILite},
}

// bufferProtocols lists the protocols for which an elastic stage exists.
var bufferProtocols = map[fabric.Buffer][]fabric.Protocol{
	fabric.RegisterBuffer: {fabric.AXI, fabric.AXILite},
	fabric.FIFOBuffer:     {fabric.AXI},
}

// A Resolver computes adapter plans.
type Resolver struct {
	hooking.HookableBase

	spec fabric.Spec
}

// NewResolver creates a resolver that checks widths against the spec.
func NewResolver(spec fabric.Spec) *Resolver {
	return &Resolver{spec: spec}
}

// Resolve computes the plan between a master and a slave. Protocol conversion
// comes first, then width conversion in the slave protocol, then clock
// crossing, then the elastic stage that the slave asks for, then the switch
// behind the slave. A master that is
// too wide for a converted leg is narrowed before the protocol conversion.
func (r *Resolver) Resolve(master, slave fabric.Endpoint) (Plan, error) {
	plan, err := r.resolve(master, slave)
	if err != nil {
		r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosPairFailed, Item: err})
		return Plan{}, err
	}

	r.InvokeHook(hooking.HookCtx{Domain: r, Pos: HookPosPairResolved, Item: plan})

	return plan, nil
}

func (r *Resolver) resolve(master, slave fabric.Endpoint) (Plan, error) {
	plan := Plan{Master: master.Name, Slave: slave.Name}
	fail := func(format string, args ...any) (Plan, error) {
		return Plan{}, &UnsupportedConversionError{
			Master: master.Name,
			Slave:  slave.Name,
			Reason: fmt.Sprintf(format, args...),
		}
	}

	if master.Role != fabric.Master || slave.Role != fabric.Slave {
		return fail("pair must go from a master to a slave")
	}

	if master.AddressWidth != slave.AddressWidth {
		return fail("address width %d differs from %d",
			master.AddressWidth, slave.AddressWidth)
	}

	path := protocolPath(master.Protocol, slave.Protocol)
	if path == nil {
		return fail("no converter from %s to %s",
			master.Protocol, slave.Protocol)
	}

	if len(path) == 1 && master.Protocol == fabric.AXI &&
		master.IDWidth > slave.IDWidth {
		return fail("id width %d would be truncated to %d",
			master.IDWidth, slave.IDWidth)
	}

	width := master.DataWidth
	if limit := r.pathLimit(path); width > limit {
		// Narrow in the master protocol first when a later leg cannot carry
		// the master width.
		narrow := min(slave.DataWidth, limit)
		plan.Steps = append(plan.Steps, Step{
			Kind:      WidthConversion,
			From:      master.Protocol,
			Protocol:  master.Protocol,
			Width:     width,
			FromWidth: width,
			ToWidth:   narrow,
		})
		width = narrow
	}

	for i := 1; i < len(path); i++ {
		plan.Steps = append(plan.Steps, Step{
			Kind:     ProtocolConversion,
			From:     path[i-1],
			Protocol: path[i],
			Width:    width,
		})
	}

	if width != slave.DataWidth {
		plan.Steps = append(plan.Steps, Step{
			Kind:      WidthConversion,
			From:      slave.Protocol,
			Protocol:  slave.Protocol,
			Width:     max(width, slave.DataWidth),
			FromWidth: width,
			ToWidth:   slave.DataWidth,
		})
	}

	if master.Domain() != slave.Domain() {
		steps, ok := insertClockCrossing(plan.Steps, master, slave)
		if !ok {
			return fail("clock domains %s and %s differ and no axi-lite leg "+
				"can cross them", master.Domain(), slave.Domain())
		}

		plan.Steps = steps
	}

	if slave.Buffer != fabric.NoBuffer {
		if !contains(bufferProtocols[slave.Buffer], slave.Protocol) {
			return fail("no %s stage exists for %s",
				slave.Buffer, slave.Protocol)
		}

		kind := RegisterSlice
		if slave.Buffer == fabric.FIFOBuffer {
			kind = FIFO
		}

		plan.Steps = append(plan.Steps, Step{
			Kind:     kind,
			From:     slave.Protocol,
			Protocol: slave.Protocol,
			Width:    slave.DataWidth,
		})
	}

	if sw := slave.Switch; sw != nil {
		kind := Crossbar
		if sw.Kind == fabric.Interconnect {
			kind = Interconnect
		}

		plan.Steps = append(plan.Steps, Step{
			Kind:     kind,
			From:     slave.Protocol,
			Protocol: slave.Protocol,
			Width:    slave.DataWidth,
			Ports:    len(sw.Ports),
		})
	}

	return plan, nil
}

// pathLimit returns the widest data bus that every leg after the first can
// carry.
func (r *Resolver) pathLimit(path []fabric.Protocol) uint32 {
	limit := ^uint32(0)
	for _, p := range path[1:] {
		limit = min(limit, r.spec.MaxDataWidthOf(p))
	}

	return limit
}

// insertClockCrossing places an AXI-Lite CDC on the first AXI-Lite leg of the
// plan, which is where the only clock crossing component exists.
func insertClockCrossing(
	steps []Step,
	master, slave fabric.Endpoint,
) ([]Step, bool) {
	cdc := Step{
		Kind:       ClockCrossing,
		From:       fabric.AXILite,
		Protocol:   fabric.AXILite,
		FromDomain: master.Domain(),
		ToDomain:   slave.Domain(),
	}

	if master.Protocol == fabric.AXILite {
		cdc.Width = master.DataWidth
		return append([]Step{cdc}, steps...), true
	}

	for i, s := range steps {
		if s.Kind == ProtocolConversion && s.Protocol == fabric.AXILite {
			cdc.Width = s.Width

			out := make([]Step, 0, len(steps)+1)
			out = append(out, steps[:i+1]...)
			out = append(out, cdc)
			out = append(out, steps[i+1:]...)

			return out, true
		}
	}

	if slave.Protocol == fabric.AXILite {
		cdc.Width = slave.DataWidth
		return append(steps, cdc), true
	}

	return nil, false
}

// protocolPath finds the shortest chain of protocols from src to dst, both
// included. It returns nil when dst cannot be reached.
func protocolPath(src, dst fabric.Protocol) []fabric.Protocol {
	if src == dst {
		return []fabric.Protocol{src}
	}

	prev := map[fabric.Protocol]fabric.Protocol{src: src}
	queue := []fabric.Protocol{src}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		for _, next := range converters[p] {
			if _, seen := prev[next]; seen {
				continue
			}

			prev[next] = p
			if next == dst {
				return unwind(prev, src, dst)
			}

			queue = append(queue, next)
		}
	}

	return nil
}

func unwind(
	prev map[fabric.Protocol]fabric.Protocol,
	src, dst fabric.Protocol,
) []fabric.Protocol {
	var path []fabric.Protocol

	for p := dst; p != src; p = prev[p] {
		path = append([]fabric.Protocol{p}, path...)
	}

	return append([]fabric.Protocol{src}, path...)
}

func contains(list []fabric.Protocol, p fabric.Protocol) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}

	return false
}
