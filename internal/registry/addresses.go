// Package registry resolves well-known Safe-ecosystem contract
// addresses (proxy factories, mastercopies, fallback handlers,
// initializers, and the delegate-call whitelist) to human-readable
// labels. It loads operator-supplied YAML overrides from disk once,
// falling back to an embedded canonical data set when no override
// directory is present.
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
)

// Name identifies one of the five canonical registries.
type Name string

const (
	DelegateCallWhitelist   Name = "delegate-call-whitelist"
	CanonicalFactories      Name = "canonical-factories"
	CanonicalMastercopies   Name = "canonical-mastercopies"
	CanonicalFallbackHandlers Name = "canonical-fallback-handlers"
	CanonicalInitializers   Name = "canonical-initializers"
)

// file is the on-disk shape of one registry override.
type file struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Version     string  `yaml:"version"`
	Entries     []entry `yaml:"entries"`
}

type entry struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

var registryFiles = map[Name]string{
	DelegateCallWhitelist:     "delegate-call-whitelist.yaml",
	CanonicalFactories:        "canonical-factories.yaml",
	CanonicalMastercopies:     "canonical-mastercopies.yaml",
	CanonicalFallbackHandlers: "canonical-fallback-handlers.yaml",
	CanonicalInitializers:     "canonical-initializers.yaml",
}

// Resolver looks up canonical labels, consulting a filesystem override
// directory first and an embedded fallback second. It is safe for
// concurrent use; the override directory is read exactly once.
type Resolver struct {
	mu         sync.RWMutex
	once       sync.Once
	overrides  map[Name]map[string]string
	overrideDir string
}

// NewResolver builds a Resolver that reads YAML overrides from dir
// (if non-empty and present) the first time a lookup is performed.
func NewResolver(dir string) *Resolver {
	return &Resolver{overrideDir: dir}
}

func (r *Resolver) load() {
	r.once.Do(func() {
		overrides := make(map[Name]map[string]string)
		if r.overrideDir == "" {
			r.mu.Lock()
			r.overrides = overrides
			r.mu.Unlock()
			return
		}
		if info, err := os.Stat(r.overrideDir); err != nil || !info.IsDir() {
			r.mu.Lock()
			r.overrides = overrides
			r.mu.Unlock()
			return
		}

		for name, filename := range registryFiles {
			path := filepath.Join(r.overrideDir, filename)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var parsed file
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				continue
			}
			m := make(map[string]string, len(parsed.Entries))
			for _, e := range parsed.Entries {
				m[strings.ToLower(e.Address)] = e.Name
			}
			overrides[name] = m
		}

		r.mu.Lock()
		r.overrides = overrides
		r.mu.Unlock()
	})
}

// Lookup resolves address against registry, preferring a loaded
// filesystem override and falling back to the embedded canonical
// table for the same registry name.
func (r *Resolver) Lookup(registry Name, address string) (string, bool) {
	r.load()
	lower := strings.ToLower(address)

	r.mu.RLock()
	overrideMap, hasOverride := r.overrides[registry]
	r.mu.RUnlock()
	if hasOverride {
		if label, ok := overrideMap[lower]; ok {
			return label, true
		}
	}

	switch registry {
	case DelegateCallWhitelist:
		return isTrustedDelegateCallTarget(lower)
	case CanonicalFactories:
		return isCanonicalFactory(lower)
	case CanonicalMastercopies:
		return isCanonicalMastercopy(lower)
	case CanonicalFallbackHandlers:
		return isCanonicalFallbackHandler(lower)
	case CanonicalInitializers:
		return isCanonicalInitializer(lower)
	default:
		return "", false
	}
}

// AvailableRegistries lists the five canonical registry names.
func AvailableRegistries() []Name {
	return []Name{
		DelegateCallWhitelist,
		CanonicalFactories,
		CanonicalMastercopies,
		CanonicalFallbackHandlers,
		CanonicalInitializers,
	}
}
