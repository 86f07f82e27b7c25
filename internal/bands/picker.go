// Package bands provides named node id bands and their selection.
package bands

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultName is the band used when a request names none.
const DefaultName = "default"

// Band is a half-open id range [Min, Max).
type Band struct {
	Min int64 `json:"min" mapstructure:"min" yaml:"min"`
	Max int64 `json:"max" mapstructure:"max" yaml:"max"`
}

// Contains reports whether id falls inside the band.
func (b Band) Contains(id int64) bool {
	return id >= b.Min && id < b.Max
}

func (b Band) String() string {
	return fmt.Sprintf("[%d, %d)", b.Min, b.Max)
}

// Picker resolves band names to ranges.
type Picker struct {
	mu          sync.RWMutex
	bands       map[string]Band
	defaultName string
}

// NewPicker creates a picker over the given bands. defaultName selects the
// band returned for an empty name.
func NewPicker(bands map[string]Band, defaultName string) *Picker {
	if defaultName == "" {
		defaultName = DefaultName
	}
	return &Picker{
		bands:       copyBands(bands),
		defaultName: defaultName,
	}
}

// Get returns the band registered under name, or the default band when name
// is empty.
func (p *Picker) Get(name string) (Band, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if name == "" {
		name = p.defaultName
	}
	b, ok := p.bands[name]
	return b, ok
}

// DefaultName returns the name of the default band.
func (p *Picker) DefaultName() string {
	return p.defaultName
}

// Names returns the registered band names, sorted.
func (p *Picker) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.bands))
	for name := range p.bands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Update replaces the band map.
func (p *Picker) Update(bands map[string]Band) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.bands = copyBands(bands)
}

// List returns a copy of all bands.
func (p *Picker) List() map[string]Band {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return copyBands(p.bands)
}

func copyBands(in map[string]Band) map[string]Band {
	out := make(map[string]Band, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
