// Package addrmap keeps the address map of a bus fabric. It holds the named
// regions that slaves occupy, refuses overlapping placements, places slaves
// that do not ask for a specific base, and maps addresses back to regions.
package addrmap

import "fmt"

// Defines the units of address space sizes.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Region is an address range owned by one slave. It covers
// [Base, Base+Size).
type Region struct {
	Name string `json:"name"`
	Base uint64 `json:"base"`
	Size uint64 `json:"size"`
}

// End returns the first address after the region. It wraps to 0 for a region
// that ends at the top of a 64-bit address space.
func (r Region) End() uint64 {
	return r.Base + r.Size
}

// Last returns the last address in the region.
func (r Region) Last() uint64 {
	return r.Base + r.Size - 1
}

// Contains checks if the address falls in the region.
func (r Region) Contains(address uint64) bool {
	return address >= r.Base && address-r.Base < r.Size
}

// Overlaps checks if two regions share at least one address.
func (r Region) Overlaps(other Region) bool {
	return r.Base <= other.Last() && other.Base <= r.Last()
}

func (r Region) String() string {
	return fmt.Sprintf("%s@[0x%x, 0x%x)", r.Name, r.Base, r.End())
}

// OverlapError reports a requested region that collides with a region that is
// already in the map.
type OverlapError struct {
	Existing  Region
	Requested Region
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("region %s overlaps existing region %s",
		e.Requested, e.Existing)
}

// RegionError reports a region that cannot be placed for reasons other than an
// overlap, such as a zero size or an address outside the address space.
type RegionError struct {
	Name   string
	Base   uint64
	Size   uint64
	Reason string
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region %s (base 0x%x, size 0x%x): %s",
		e.Name, e.Base, e.Size, e.Reason)
}
