// Package export writes the final pipeline state to disk as a named
// artifact bundle and produces the descriptors the record store persists.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/shayc/genesis/internal/pipeline"
)

// Artifact type tags, stable across runs and persisted in the record store.
const (
	TypePRD          = "prd"
	TypeBrandAssets  = "brand_assets"
	TypeArchitecture = "architecture"
	TypeSourceCode   = "source_code"
	TypeMarketing    = "marketing_plan"
	TypeInstallGuide = "install_guide"
	TypeManifest     = "manifest"
)

// Descriptor names one exported artifact: a type tag plus the absolute
// location the record store persists.
type Descriptor struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

// manifest is the serialized description of an artifact bundle.
type manifest struct {
	Idea           string       `yaml:"idea"`
	GeneratedFiles int          `yaml:"generated_files"`
	TotalTokens    int64        `yaml:"total_tokens"`
	Artifacts      []Descriptor `yaml:"artifacts"`
}

// Writer exports a completed run's state under a single output directory.
// Writes are deterministic: exporting the same state twice produces
// byte-identical files.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write exports every populated output field of the state and returns the
// artifact descriptors. Fields that were never written (the install guide
// when the terminal unit is skipped) are omitted from the bundle.
func (w *Writer) Write(st *pipeline.State) ([]Descriptor, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var descriptors []Descriptor
	add := func(typ, rel string) error {
		abs, err := filepath.Abs(filepath.Join(w.dir, rel))
		if err != nil {
			return fmt.Errorf("resolve artifact path: %w", err)
		}
		descriptors = append(descriptors, Descriptor{Type: typ, Path: abs})
		return nil
	}

	if doc, ok := st.RequirementsDoc(); ok {
		if err := w.writeFile("PRD.md", []byte(doc)); err != nil {
			return nil, err
		}
		if err := add(TypePRD, "PRD.md"); err != nil {
			return nil, err
		}
	}

	if brand, ok := st.BrandAssets(); ok {
		data, err := marshalJSON(brand)
		if err != nil {
			return nil, fmt.Errorf("marshal brand guide: %w", err)
		}
		if err := w.writeFile("brand_guide.json", data); err != nil {
			return nil, err
		}
		if err := add(TypeBrandAssets, "brand_guide.json"); err != nil {
			return nil, err
		}
	}

	if arch, ok := st.ArchitectureMap(); ok {
		data, err := marshalJSON(arch)
		if err != nil {
			return nil, fmt.Errorf("marshal architecture: %w", err)
		}
		if err := w.writeFile("architecture.json", data); err != nil {
			return nil, err
		}
		if err := add(TypeArchitecture, "architecture.json"); err != nil {
			return nil, err
		}
	}

	if files, ok := st.GeneratedFiles(); ok {
		if err := w.writeTree("source_code", files); err != nil {
			return nil, err
		}
		if err := add(TypeSourceCode, "source_code"); err != nil {
			return nil, err
		}
	}

	if plan, ok := st.MarketingPlan(); ok {
		if err := w.writeFile("marketing_plan.md", []byte(plan)); err != nil {
			return nil, err
		}
		if err := add(TypeMarketing, "marketing_plan.md"); err != nil {
			return nil, err
		}
	}

	if guide, ok := st.InstallGuide(); ok {
		if err := w.writeFile("INSTALL_GUIDE.md", []byte(guide)); err != nil {
			return nil, err
		}
		if err := add(TypeInstallGuide, "INSTALL_GUIDE.md"); err != nil {
			return nil, err
		}
	}

	if err := w.writeManifest(st, descriptors); err != nil {
		return nil, err
	}
	if err := add(TypeManifest, "manifest.yaml"); err != nil {
		return nil, err
	}

	return descriptors, nil
}

// writeManifest serializes the bundle description as YAML.
func (w *Writer) writeManifest(st *pipeline.State, descriptors []Descriptor) error {
	files, _ := st.GeneratedFiles()
	m := manifest{
		Idea:           st.Idea(),
		GeneratedFiles: len(files),
		TotalTokens:    st.Meta().TotalTokens,
		Artifacts:      descriptors,
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return w.writeFile("manifest.yaml", data)
}

// writeTree flattens the generated file mapping onto disk under root,
// iterating in sorted order so repeated exports behave identically.
func (w *Writer) writeTree(root string, files map[string]string) error {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if !filepath.IsLocal(p) {
			return fmt.Errorf("generated file path %q escapes the output directory", p)
		}
		rel := filepath.Join(root, filepath.FromSlash(p))
		if err := w.writeFile(rel, []byte(files[p])); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes one artifact file, creating parent directories as needed.
func (w *Writer) writeFile(rel string, data []byte) error {
	full := filepath.Join(w.dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// marshalJSON renders a structured artifact with stable two-space
// indentation and a trailing newline.
func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
