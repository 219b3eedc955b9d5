package addrmap

import (
	"math/bits"
	"sort"
)

// Registry holds the regions of one address space. Regions are write-once:
// there is no way to move, resize or remove a region after it is registered.
type Registry struct {
	addressWidth uint32
	allocBase    uint64
	regions      []Region
	nameIndex    map[string]int
}

// NewRegistry creates an empty registry for an address space of the given
// width in bits. A width of 64 covers the whole uint64 range.
func NewRegistry(addressWidth uint32) *Registry {
	if addressWidth == 0 || addressWidth > 64 {
		panic("address width must be between 1 and 64")
	}

	return &Registry{
		addressWidth: addressWidth,
		nameIndex:    make(map[string]int),
	}
}

// WithAllocBase sets the lowest address that Allocate may hand out.
func (r *Registry) WithAllocBase(base uint64) *Registry {
	r.allocBase = base
	return r
}

// AddressWidth returns the width of the address space in bits.
func (r *Registry) AddressWidth() uint32 {
	return r.addressWidth
}

// Limit returns the size of the address space. It returns 0 for a 64-bit space,
// whose size does not fit in a uint64.
func (r *Registry) Limit() uint64 {
	if r.addressWidth == 64 {
		return 0
	}

	return 1 << r.addressWidth
}

// Register places a region at a fixed base.
func (r *Registry) Register(name string, base, size uint64) error {
	requested := Region{Name: name, Base: base, Size: size}

	err := r.checkPlacement(requested)
	if err != nil {
		return err
	}

	for _, existing := range r.regions {
		if existing.Overlaps(requested) {
			return &OverlapError{Existing: existing, Requested: requested}
		}
	}

	r.add(requested)

	return nil
}

// Allocate places a region at the lowest free base, at or above the allocation
// base, that is aligned to the size rounded up to a power of two.
func (r *Registry) Allocate(name string, size uint64) (Region, error) {
	req := Region{Name: name, Base: r.allocBase, Size: size}

	if size == 0 {
		return Region{}, r.regionError(req, "size must not be zero")
	}

	align := roundUpPow2(size)
	if align == 0 {
		return Region{}, r.regionError(req, "size too large to align")
	}

	base, ok := alignUp(r.allocBase, align)
	for _, existing := range r.Sorted() {
		if !ok {
			break
		}

		candidate := Region{Name: name, Base: base, Size: size}
		if existing.Overlaps(candidate) {
			next := existing.Last() + 1
			if next == 0 {
				ok = false
				break
			}

			base, ok = alignUp(next, align)
		}
	}

	req.Base = base
	if !ok || !r.fits(req) {
		return Region{}, r.regionError(req, "address space exhausted")
	}

	err := r.Register(name, base, size)
	if err != nil {
		return Region{}, err
	}

	return req, nil
}

// Lookup returns the region with the given name.
func (r *Registry) Lookup(name string) (Region, bool) {
	i, found := r.nameIndex[name]
	if !found {
		return Region{}, false
	}

	return r.regions[i], true
}

// Len returns the number of regions.
func (r *Registry) Len() int {
	return len(r.regions)
}

// Regions returns the regions in registration order.
func (r *Registry) Regions() []Region {
	out := make([]Region, len(r.regions))
	copy(out, r.regions)

	return out
}

// Sorted returns the regions ordered by base address.
func (r *Registry) Sorted() []Region {
	out := r.Regions()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Base < out[j].Base
	})

	return out
}

// Overlaps lists every pair of overlapping regions. A registry that only grew
// through Register and Allocate never has any.
func (r *Registry) Overlaps() []*OverlapError {
	var errs []*OverlapError

	sorted := r.Sorted()
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j].Base > sorted[i].Last() {
				break
			}

			errs = append(errs, &OverlapError{
				Existing:  sorted[i],
				Requested: sorted[j],
			})
		}
	}

	return errs
}

func (r *Registry) add(region Region) {
	r.regions = append(r.regions, region)
	r.nameIndex[region.Name] = len(r.regions) - 1
}

func (r *Registry) checkPlacement(req Region) error {
	if req.Name == "" {
		return r.regionError(req, "name must not be empty")
	}

	if _, dup := r.nameIndex[req.Name]; dup {
		return r.regionError(req, "name already registered")
	}

	if req.Size == 0 {
		return r.regionError(req, "size must not be zero")
	}

	if req.Base+req.Size < req.Base && req.Base+req.Size != 0 {
		return r.regionError(req, "region wraps around the address space")
	}

	if !r.fits(req) {
		return r.regionError(req, "region exceeds the address space")
	}

	return nil
}

// fits checks that the region ends inside the address space. An end of 0 is
// the top of a 64-bit space.
func (r *Registry) fits(req Region) bool {
	end := req.Base + req.Size
	if end == 0 {
		return r.addressWidth == 64 && req.Base != 0
	}

	if end < req.Base {
		return false
	}

	limit := r.Limit()

	return limit == 0 || end <= limit
}

func (r *Registry) regionError(req Region, reason string) *RegionError {
	return &RegionError{
		Name:   req.Name,
		Base:   req.Base,
		Size:   req.Size,
		Reason: reason,
	}
}

func roundUpPow2(v uint64) uint64 {
	if v <= 1 {
		return 1
	}

	shift := bits.Len64(v - 1)
	if shift >= 64 {
		return 0
	}

	return 1 << shift
}

// alignUp returns the first multiple of align at or above v, or false when it
// does not fit in a uint64.
func alignUp(v, align uint64) (uint64, bool) {
	aligned := (v + align - 1) &^ (align - 1)
	if aligned < v {
		return 0, false
	}

	return aligned, true
}
