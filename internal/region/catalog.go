package region

import (
	"fmt"
	"strings"
)

// Catalog is an ordered set of regions with unique names.
type Catalog struct {
	regions []Region
	index   map[string]int
}

// NewCatalog validates and indexes the given regions, preserving their order.
func NewCatalog(regions ...Region) (*Catalog, error) {
	c := &Catalog{
		regions: make([]Region, 0, len(regions)),
		index:   make(map[string]int, len(regions)),
	}
	for _, r := range regions {
		if r.SizeClass == "" {
			r.SizeClass = Standard
		}
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[r.Name]; dup {
			return nil, fmt.Errorf("duplicate region name %q", r.Name)
		}
		c.index[r.Name] = len(c.regions)
		c.regions = append(c.regions, r)
	}
	return c, nil
}

// Default returns the catalog of regression regions shipped with the tool.
func Default() *Catalog {
	c, err := NewCatalog(
		Region{
			Name:       "north_hem_basic",
			Longitude:  Extent{Min: 304, Max: 307},
			Latitude:   Extent{Min: 38, Max: 41},
			Resolution: 0.05,
		},
		Region{
			Name:       "south_long_seam",
			Longitude:  Extent{Min: 175, Max: 181},
			Latitude:   Extent{Min: -25, Max: -23},
			Resolution: 0.05,
		},
		Region{
			Name:       "south_prime_seam",
			Longitude:  Extent{Min: -3, Max: 1},
			Latitude:   Extent{Min: -18, Max: -16},
			Resolution: 0.05,
		},
	)
	if err != nil {
		// The built-in catalog is static; failing here is a programming error.
		panic(err)
	}
	return c
}

// Regions returns a copy of the regions in catalog order.
func (c *Catalog) Regions() []Region {
	out := make([]Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Names returns region names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.regions))
	for i, r := range c.regions {
		out[i] = r.Name
	}
	return out
}

// Len returns the number of regions.
func (c *Catalog) Len() int {
	return len(c.regions)
}

// Lookup returns the region with the given name.
func (c *Catalog) Lookup(name string) (Region, bool) {
	i, ok := c.index[name]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// Select returns a sub-catalog with the named regions, in catalog order
// regardless of the order the names were given in. No names selects all.
func (c *Catalog) Select(names ...string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if _, ok := c.Lookup(n); !ok {
			unknown = append(unknown, n)
			continue
		}
		want[n] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown region(s) %s; catalog has %s",
			strings.Join(unknown, ", "), strings.Join(c.Names(), ", "))
	}

	var picked []Region
	for _, r := range c.regions {
		if want[r.Name] {
			picked = append(picked, r)
		}
	}
	return NewCatalog(picked...)
}
