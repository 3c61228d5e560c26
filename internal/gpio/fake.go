package gpio

import (
	"errors"
	"sort"
	"sync"
)

// Write records a single output write made to a FakePins.
type Write struct {
	Name string
	High bool
}

// FakePins is a test double with scripted input levels and recorded writes.
type FakePins struct {
	mu sync.Mutex

	// samples holds per-input scripted levels. Each Read of an input consumes
	// the next sample; the last one repeats once exhausted.
	samples map[string][]bool
	index   map[string]int
	names   []string

	// writes contains every output write in order.
	writes []Write

	// ReadError, if set, is returned by Read.
	ReadError error

	// WriteError, if set, is returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePins creates a FakePins whose inputs hold the given fixed levels.
func NewFakePins(levels map[string]bool) *FakePins {
	f := &FakePins{
		samples: make(map[string][]bool, len(levels)),
		index:   make(map[string]int, len(levels)),
	}
	for name, v := range levels {
		f.samples[name] = []bool{v}
		f.names = append(f.names, name)
	}
	sort.Strings(f.names)
	return f
}

// Script replaces the samples of one input.
func (f *FakePins) Script(name string, samples ...bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.samples[name]; !ok {
		f.names = append(f.names, name)
		sort.Strings(f.names)
	}
	f.samples[name] = samples
	f.index[name] = 0
}

// Set fixes one input at a single level.
func (f *FakePins) Set(name string, high bool) {
	f.Script(name, high)
}

// Inputs returns the scripted input names in sorted order.
func (f *FakePins) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.names...)
}

// Read returns the next scripted level for name.
func (f *FakePins) Read(name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return false, f.ReadError
	}
	s, ok := f.samples[name]
	if !ok {
		return false, ErrUnknownPin
	}
	if len(s) == 0 {
		return false, errors.New("no samples configured")
	}
	i := f.index[name]
	if i < len(s)-1 {
		f.index[name] = i + 1
	}
	return s[i], nil
}

// Write records the write.
func (f *FakePins) Write(name string, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.writes = append(f.writes, Write{Name: name, High: high})
	return nil
}

// Writes returns a copy of the recorded writes.
func (f *FakePins) Writes() []Write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Write(nil), f.writes...)
}

// WritesTo returns the levels written to one output, in order.
func (f *FakePins) WritesTo(name string) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bool
	for _, w := range f.writes {
		if w.Name == name {
			out = append(out, w.High)
		}
	}
	return out
}

// ResetWrites clears the recorded writes.
func (f *FakePins) ResetWrites() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
}

// Close marks the pins as closed.
func (f *FakePins) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
