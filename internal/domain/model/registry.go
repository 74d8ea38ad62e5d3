package model

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"
)

// EnvelopeVersion is the artifact format version written by Save.
const EnvelopeVersion = 1

// Envelope wraps a gob-encoded value with the name it was registered under.
type Envelope struct {
	Type    string
	Version int
	Payload []byte
}

// Factory returns a pointer to a zero value ready for decoding.
type Factory func() any

var registry = struct {
	sync.RWMutex
	factories map[string]Factory
}{factories: make(map[string]Factory)}

// Register makes a type loadable from artifacts. It panics on duplicate names.
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.factories[name]; dup {
		panic(fmt.Sprintf("model: Register called twice for %q", name))
	}
	registry.factories[name] = f
}

// Registered returns the sorted list of registered type names.
func Registered() []string {
	registry.RLock()
	defer registry.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for n := range registry.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Factory, bool) {
	registry.RLock()
	defer registry.RUnlock()
	f, ok := registry.factories[name]
	return f, ok
}

// Save writes v as an artifact under the given registered name.
func Save(w io.Writer, name string, v any) error {
	if _, ok := lookup(name); !ok {
		return fmt.Errorf("%w: %s", ErrUnregistered, name)
	}
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	env := Envelope{Type: name, Version: EnvelopeVersion, Payload: payload.Bytes()}
	if err := gob.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return nil
}

// Load reads an artifact. An unknown type yields *MissingDependencyError;
// undecodable bytes yield ErrCorruptArtifact.
func Load(r io.Reader) (any, error) {
	var env Envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: envelope has no type", ErrCorruptArtifact)
	}
	f, ok := lookup(env.Type)
	if !ok {
		return nil, &MissingDependencyError{Name: env.Type}
	}
	v := f()
	if err := gob.NewDecoder(bytes.NewReader(env.Payload)).Decode(v); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptArtifact, env.Type, err)
	}
	return v, nil
}
