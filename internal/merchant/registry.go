package merchant

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

//go:embed profiles.schema.json
var profilesSchema []byte

// ErrDuplicateProfile is returned when two profiles share a name
var ErrDuplicateProfile = errors.New("duplicate merchant profile")

// Registry holds the known merchant profiles in registration order.
// It is built once at startup and is safe for concurrent reads.
type Registry struct {
	profiles []*Profile
	byName   map[string]*Profile
	generic  *Profile
}

// profileDocument is the top-level shape of a profiles file
type profileDocument struct {
	Profiles []ProfileSpec `yaml:"profiles"`
}

// NewRegistry creates a registry from compiled profiles. The first registered
// profile wins detection ties, so order matters.
func NewRegistry(profiles ...*Profile) (*Registry, error) {
	r := &Registry{
		profiles: make([]*Profile, 0, len(profiles)),
		byName:   make(map[string]*Profile, len(profiles)),
		generic:  newGeneric(),
	}
	for _, p := range profiles {
		key := strings.ToUpper(p.Name)
		if _, exists := r.byName[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Name)
		}
		r.byName[key] = p
		r.profiles = append(r.profiles, p)
	}
	return r, nil
}

// DefaultRegistry returns a registry holding the built-in profiles
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultProfiles)
}

// LoadRegistryFile reads a YAML profiles file from disk
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}
	return LoadRegistry(data)
}

// LoadRegistry parses a YAML profiles document, validates it against the
// profile schema and compiles every profile
func LoadRegistry(data []byte) (*Registry, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc profileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}

	profiles := make([]*Profile, 0, len(doc.Profiles))
	for _, spec := range doc.Profiles {
		p, err := Compile(spec)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}

	return NewRegistry(profiles...)
}

// validateDocument checks the raw YAML against the embedded JSON schema
func validateDocument(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing profiles: %w", err)
	}

	// Round-trip through JSON so the validator sees plain JSON types
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("converting profiles: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("converting profiles: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("profiles.schema.json", bytes.NewReader(profilesSchema)); err != nil {
		return fmt.Errorf("adding profile schema: %w", err)
	}
	schema, err := compiler.Compile("profiles.schema.json")
	if err != nil {
		return fmt.Errorf("compiling profile schema: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}

// Profiles returns the registered profiles in registration order
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Get looks up a profile by name, ignoring case
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.byName[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// Generic returns the fallback profile used when no merchant is detected
func (r *Registry) Generic() *Profile {
	return r.generic
}

// Len returns the number of registered merchant profiles
func (r *Registry) Len() int {
	return len(r.profiles)
}
