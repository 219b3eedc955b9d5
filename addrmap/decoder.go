package addrmap

import (
	"fmt"
	"sort"
)

// Decoder finds the region that serves a certain address, the same way an
// interconnect's address decoder selects the slave port for a request.
type Decoder interface {
	Find(address uint64) (Region, bool)
}

// SortedDecoder searches a set of disjoint regions ordered by base address.
type SortedDecoder struct {
	regions []Region
}

// NewSortedDecoder creates a decoder over the given regions. The regions must
// not overlap.
func NewSortedDecoder(regions []Region) *SortedDecoder {
	d := &SortedDecoder{
		regions: make([]Region, len(regions)),
	}

	copy(d.regions, regions)
	sort.Slice(d.regions, func(i, j int) bool {
		return d.regions[i].Base < d.regions[j].Base
	})

	return d
}

// Find returns the region that contains the address.
func (d *SortedDecoder) Find(address uint64) (Region, bool) {
	i := sort.Search(len(d.regions), func(i int) bool {
		return d.regions[i].Last() >= address
	})

	if i < len(d.regions) && d.regions[i].Contains(address) {
		return d.regions[i], true
	}

	return Region{}, false
}

// Decoder returns a decoder over the regions registered so far.
func (r *Registry) Decoder() Decoder {
	return NewSortedDecoder(r.regions)
}

// TreeDecoder decodes through nested address maps. A region can carry its own
// map of sub-regions, as when a crossbar behind one slave port splits its
// window between several downstream ports.
type TreeDecoder struct {
	top      *SortedDecoder
	regions  map[string]Region
	children map[string]*TreeDecoder
}

// NewTreeDecoder creates a decoder over disjoint top-level regions.
func NewTreeDecoder(regions []Region) *TreeDecoder {
	d := &TreeDecoder{
		top:      NewSortedDecoder(regions),
		regions:  make(map[string]Region, len(regions)),
		children: make(map[string]*TreeDecoder),
	}

	for _, r := range regions {
		d.regions[r.Name] = r
	}

	return d
}

// Nest maps sub-regions inside the region with the given name. Every
// sub-region must lie inside the parent and the sub-regions must not overlap
// each other. The returned decoder decodes the nested level.
func (d *TreeDecoder) Nest(parent string, regions []Region) (*TreeDecoder, error) {
	p, found := d.regions[parent]
	if !found {
		return nil, fmt.Errorf("region %s is not in the map", parent)
	}

	if _, dup := d.children[parent]; dup {
		return nil, fmt.Errorf("region %s is already split", parent)
	}

	for i, r := range regions {
		if !Inside(p, r) {
			return nil, &RegionError{
				Name:   r.Name,
				Base:   r.Base,
				Size:   r.Size,
				Reason: "sub-region is not inside " + p.String(),
			}
		}

		for _, other := range regions[:i] {
			if other.Overlaps(r) {
				return nil, &OverlapError{Existing: other, Requested: r}
			}
		}
	}

	child := NewTreeDecoder(regions)
	d.children[parent] = child

	return child, nil
}

// Children returns the sub-regions of a region, ordered by base address.
func (d *TreeDecoder) Children(parent string) []Region {
	child, found := d.children[parent]
	if !found {
		return nil
	}

	out := make([]Region, len(child.top.regions))
	copy(out, child.top.regions)

	return out
}

// FindPath returns the regions that contain the address, from the top level
// down. The path is complete when its last region has no sub-regions. An
// address in a gap between the sub-regions of a split region gives an
// incomplete path.
func (d *TreeDecoder) FindPath(address uint64) (path []Region, complete bool) {
	for level := d; ; {
		r, found := level.top.Find(address)
		if !found {
			return path, false
		}

		path = append(path, r)

		next, split := level.children[r.Name]
		if !split {
			return path, true
		}

		level = next
	}
}

// Find returns the innermost region that serves the address. Addresses that
// fall in a gap of a split region are not served.
func (d *TreeDecoder) Find(address uint64) (Region, bool) {
	path, complete := d.FindPath(address)
	if !complete {
		return Region{}, false
	}

	return path[len(path)-1], true
}

// Inside checks if the inner region lies completely inside the outer one.
func Inside(outer, inner Region) bool {
	if inner.Size == 0 || inner.Base < outer.Base {
		return false
	}

	offset := inner.Base - outer.Base
	if offset >= outer.Size {
		return false
	}

	return inner.Size <= outer.Size-offset
}
