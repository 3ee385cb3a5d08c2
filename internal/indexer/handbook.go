package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// APIRef is one entry of the manifest's apis list. Entries may be bare file
// names or mappings carrying a name and a spec path.
type APIRef struct {
	Name string `yaml:"name"`
	Spec string `yaml:"spec"`
}

// UnmarshalYAML accepts both a scalar ("sales.yaml") and a mapping.
func (a *APIRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		a.Spec = value.Value
		return nil
	}
	type plain APIRef
	return value.Decode((*plain)(a))
}

// Manifest is the subset of Agent.yaml the indexer consumes. Guardrails,
// releases and the regression suite are opaque to the core.
type Manifest struct {
	Name string   `yaml:"name"`
	APIs []APIRef `yaml:"apis"`
}

// Handbook is a loaded, indexable bundle.
type Handbook struct {
	Root         string
	Name         string
	Manifest     Manifest
	Instructions string
	SpecFiles    []string
	DocFiles     []string
}

var docExtensions = map[string]bool{
	".md": true, ".markdown": true, ".mdx": true, ".txt": true,
}

// LoadHandbook reads the on-disk layout: Agent.yaml, instructions.md,
// openapi/*.yaml|yml and docs/**. Files outside these locations are ignored.
func LoadHandbook(root string) (*Handbook, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("handbook root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("handbook root must be a directory: %s", root)
	}
	hb := &Handbook{Root: root, Name: filepath.Base(root)}

	manifestPath := filepath.Join(root, "Agent.yaml")
	hasManifest := false
	if b, err := os.ReadFile(manifestPath); err == nil {
		if err := yaml.Unmarshal(b, &hb.Manifest); err != nil {
			return nil, fmt.Errorf("parse %s: %w", manifestPath, err)
		}
		hasManifest = true
		if hb.Manifest.Name != "" {
			hb.Name = hb.Manifest.Name
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", manifestPath, err)
	}

	if b, err := os.ReadFile(filepath.Join(root, "instructions.md")); err == nil {
		hb.Instructions = string(b)
	}

	specs, err := discoverSpecs(filepath.Join(root, "openapi"))
	if err != nil {
		return nil, err
	}
	if hasManifest {
		specs = boundByManifest(specs, hb.Manifest.APIs)
	}
	hb.SpecFiles = specs

	docs, err := discoverDocs(filepath.Join(root, "docs"))
	if err != nil {
		return nil, err
	}
	hb.DocFiles = docs
	return hb, nil
}

func discoverSpecs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read openapi dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// boundByManifest keeps only the specs the manifest names. A manifest with an
// empty apis list bounds the handbook to no API at all.
func boundByManifest(specs []string, apis []APIRef) []string {
	allowed := map[string]bool{}
	for _, a := range apis {
		for _, v := range []string{a.Spec, a.Name} {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			base := filepath.Base(v)
			allowed[base] = true
			allowed[strings.TrimSuffix(base, filepath.Ext(base))] = true
		}
	}
	var out []string
	for _, s := range specs {
		base := filepath.Base(s)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if allowed[base] || allowed[stem] {
			out = append(out, s)
		}
	}
	return out
}

func discoverDocs(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if docExtensions[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk docs dir: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// ServiceName derives a display name for one spec file.
func ServiceName(specPath string) string {
	base := filepath.Base(specPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
