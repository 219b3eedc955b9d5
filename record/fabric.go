package record

import (
	"fmt"

	"github.com/sarchlab/axifabric/addrmap"
	"github.com/sarchlab/axifabric/fabric"
	"github.com/sarchlab/axifabric/fabric/adapter"
)

// Table names used by RecordFabric.
const (
	RegionTable   = "regions"
	EndpointTable = "endpoints"
	PlanTable     = "plans"
	StepTable     = "steps"
	FailureTable  = "failures"
)

// Addresses are stored as hex strings because SQLite integers are signed.
type regionRow struct {
	Name   string
	Base   string
	Size   string
	Parent string
}

type endpointRow struct {
	Name         string
	Role         string
	Protocol     string
	DataWidth    uint32
	AddressWidth uint32
	IDWidth      uint32
	ClockDomain  string
	Buffer       string
	Switch       string
	Ports        int
}

type planRow struct {
	Master string
	Slave  string
	Steps  int
	Direct bool
}

type stepRow struct {
	Master     string
	Slave      string
	Position   int
	Kind       string
	FromProto  string
	Protocol   string
	Width      uint32
	FromWidth  uint32
	ToWidth    uint32
	FromDomain string
	ToDomain   string
	Ports      int
}

type failureRow struct {
	Master string
	Slave  string
	Reason string
}

func makeRegionRow(r addrmap.Region, parent string) regionRow {
	return regionRow{
		Name:   r.Name,
		Base:   fmt.Sprintf("0x%x", r.Base),
		Size:   fmt.Sprintf("0x%x", r.Size),
		Parent: parent,
	}
}

// RecordFabric writes the address map, the endpoints, the plans and the
// failures of a resolved fabric, then flushes the recorder.
func RecordFabric(
	r Recorder,
	d *fabric.Descriptor,
	plan *adapter.FabricPlan,
) error {
	tables := []struct {
		name   string
		sample any
	}{
		{RegionTable, regionRow{}},
		{EndpointTable, endpointRow{}},
		{PlanTable, planRow{}},
		{StepTable, stepRow{}},
		{FailureTable, failureRow{}},
	}

	for _, t := range tables {
		err := r.CreateTable(t.name, t.sample)
		if err != nil {
			return err
		}
	}

	var err error
	add := func(table string, entry any) {
		if err == nil {
			err = r.InsertData(table, entry)
		}
	}

	for _, region := range d.Regions().Sorted() {
		add(RegionTable, makeRegionRow(region, ""))

		h, _ := d.Lookup(region.Name)
		for _, sub := range d.SubRegions(h) {
			add(RegionTable, makeRegionRow(sub, region.Name))
		}
	}

	for _, e := range d.Endpoints() {
		row := endpointRow{
			Name:         e.Name,
			Role:         e.Role.String(),
			Protocol:     e.Protocol.String(),
			DataWidth:    e.DataWidth,
			AddressWidth: e.AddressWidth,
			IDWidth:      e.IDWidth,
			ClockDomain:  e.Domain(),
			Buffer:       e.Buffer.String(),
		}

		if e.Switch != nil {
			row.Switch = e.Switch.Kind.String()
			row.Ports = len(e.Switch.Ports)
		}

		add(EndpointTable, row)
	}

	if plan != nil {
		for _, p := range plan.Plans {
			add(PlanTable, planRow{
				Master: p.Master,
				Slave:  p.Slave,
				Steps:  len(p.Steps),
				Direct: p.Direct(),
			})

			for i, s := range p.Steps {
				add(StepTable, stepRow{
					Master:     p.Master,
					Slave:      p.Slave,
					Position:   i,
					Kind:       s.Kind.String(),
					FromProto:  s.From.String(),
					Protocol:   s.Protocol.String(),
					Width:      s.Width,
					FromWidth:  s.FromWidth,
					ToWidth:    s.ToWidth,
					FromDomain: s.FromDomain,
					ToDomain:   s.ToDomain,
					Ports:      s.Ports,
				})
			}
		}

		for _, f := range plan.Failed {
			add(FailureTable, failureRow{
				Master: f.Master,
				Slave:  f.Slave,
				Reason: f.Reason,
			})
		}
	}

	if err != nil {
		return err
	}

	return r.Flush()
}
