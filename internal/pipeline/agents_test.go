package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shayc/genesis/internal/api"
)

// fakeGen is a canned generation backend keyed by system prompt. JSON
// responses go through the production decoder so schema handling is
// exercised end to end.
type fakeGen struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func newFakeGen() *fakeGen {
	return &fakeGen{
		responses: map[string]string{
			requirementsSystemPrompt: cannedPRD,
			brandSystemPrompt:        cannedBrandJSON,
			architectureSystemPrompt: cannedArchitectureJSON,
			codegenSystemPrompt:      cannedFilesJSON,
			marketingSystemPrompt:    cannedMarketingPlan,
			onboardingSystemPrompt:   cannedInstallGuide,
		},
		errs: make(map[string]error),
	}
}

func (f *fakeGen) GenerateText(ctx context.Context, system, prompt string) (string, api.Usage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, system)
	f.mu.Unlock()

	if err := f.errs[system]; err != nil {
		return "", api.Usage{}, err
	}
	resp, ok := f.responses[system]
	if !ok {
		return "", api.Usage{}, errors.New("no canned response for system prompt")
	}
	return resp, api.Usage{InputTokens: 100, OutputTokens: 200}, nil
}

func (f *fakeGen) GenerateJSON(ctx context.Context, system, prompt string, out any) (api.Usage, error) {
	text, usage, err := f.GenerateText(ctx, system, prompt)
	if err != nil {
		return usage, err
	}
	if err := api.DecodeJSON(text, out); err != nil {
		return usage, err
	}
	return usage, nil
}

const cannedPRD = `# Product Requirements Document

## Executive Summary
A todo app for dog walkers.

## Problem Statement
Dog walkers juggle schedules on paper.`

const cannedBrandJSON = `{
  "brand_name": "Pawlanner",
  "tagline": "Every walk, on schedule",
  "color_palette": {
    "primary": "#2B6CB0",
    "secondary": "#68D391",
    "accent": "#F6AD55",
    "background": "#FFFFFF",
    "text": "#1A202C"
  },
  "typography": {
    "heading_font": "Poppins",
    "body_font": "Inter"
  },
  "visual_style": "friendly and bright",
  "logo_prompt": "a minimalist paw print inside a calendar tile",
  "ui_mockup_prompts": ["dashboard view", "schedule view", "client list"]
}`

const cannedArchitectureJSON = `{
  "tech_stack": {
    "frontend": ["React", "Vite"],
    "backend": ["Node.js", "Express"],
    "database": "PostgreSQL",
    "infrastructure": ["Docker"]
  },
  "architecture_pattern": "monolith",
  "file_structure": {
    "root/": {
      "src/": ["app.js"]
    }
  },
  "key_modules": [
    {
      "name": "Scheduling",
      "files": ["schedule.js"],
      "dependencies": ["date-fns"]
    }
  ],
  "api_endpoints": [
    {
      "method": "POST",
      "path": "/api/walks",
      "description": "Create a walk"
    }
  ]
}`

const cannedFilesJSON = `{
  "src/app.js": "console.log('hello');",
  "src/schedule.js": "export const walks = [];",
  "package.json": "{\"name\": \"pawlanner\"}"
}`

const cannedMarketingPlan = `# Go-To-Market Plan

## Target Audience
Independent dog walkers.`

const cannedInstallGuide = `# Installation Guide

1. npm install
2. npm start`

// runFullPipeline executes all six agents against a fresh state.
func runFullPipeline(t *testing.T, gen Generator) (*State, error) {
	t.Helper()

	units := []Unit{
		NewRequirementsDrafter(gen, nil, nil),
		NewBrandDesigner(gen, nil, nil),
		NewArchitecturePlanner(gen, nil, nil),
		NewCodeGenerator(gen, nil, nil),
		NewMarketingStrategist(gen, nil, nil),
		NewOnboardingWriter(gen, nil, nil),
	}
	g, err := NewGraph(units, nil, nil)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	st := NewState("a todo app for dog walkers")
	return st, g.Execute(context.Background(), st)
}

func TestPipelineRoundTrip(t *testing.T) {
	gen := newFakeGen()
	st, err := runFullPipeline(t, gen)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	doc, ok := st.RequirementsDoc()
	if !ok || !strings.Contains(doc, "Executive Summary") {
		t.Errorf("requirements doc missing or wrong: %q", doc)
	}

	brand, ok := st.BrandAssets()
	if !ok {
		t.Fatal("brand assets not written")
	}
	if brand.BrandName != "Pawlanner" {
		t.Errorf("brand name = %q, want Pawlanner", brand.BrandName)
	}
	if brand.ColorPalette["primary"] != "#2B6CB0" {
		t.Errorf("primary color = %q, want #2B6CB0", brand.ColorPalette["primary"])
	}

	arch, ok := st.ArchitectureMap()
	if !ok {
		t.Fatal("architecture map not written")
	}
	if arch.ArchitecturePattern != "monolith" {
		t.Errorf("pattern = %q, want monolith", arch.ArchitecturePattern)
	}
	if arch.TechStack.Database != "PostgreSQL" {
		t.Errorf("database = %q, want PostgreSQL", arch.TechStack.Database)
	}

	files, ok := st.GeneratedFiles()
	if !ok || len(files) != 3 {
		t.Fatalf("generated files = %v, want 3 entries", files)
	}
	if files["src/app.js"] == "" {
		t.Error("generated file src/app.js is empty")
	}

	if plan, ok := st.MarketingPlan(); !ok || !strings.Contains(plan, "Target Audience") {
		t.Errorf("marketing plan missing or wrong: %q", plan)
	}
	if guide, ok := st.InstallGuide(); !ok || !strings.Contains(guide, "npm install") {
		t.Errorf("install guide missing or wrong: %q", guide)
	}

	// Six agents, one call each, no retries.
	if len(gen.calls) != 6 {
		t.Errorf("generation calls = %d, want 6", len(gen.calls))
	}

	meta := st.Meta()
	if meta.TotalTokens != 6*300 {
		t.Errorf("TotalTokens = %d, want %d", meta.TotalTokens, 6*300)
	}
	if len(st.History()) != 12 {
		t.Errorf("history entries = %d, want 12", len(st.History()))
	}
}

func TestPipelineSchemaViolationFailsRun(t *testing.T) {
	gen := newFakeGen()
	gen.responses[brandSystemPrompt] = `I could not produce JSON this time, sorry.`

	_, err := runFullPipeline(t, gen)
	if err == nil {
		t.Fatal("pipeline succeeded on a schema violation")
	}
	var schemaErr *api.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *api.SchemaError", err)
	}
	if !strings.Contains(err.Error(), "brand_designer") {
		t.Errorf("error %q does not name the failing agent", err)
	}
}

func TestPipelineUnknownFieldFailsRun(t *testing.T) {
	gen := newFakeGen()
	// A shape-drifted brand response with an unexpected field.
	gen.responses[brandSystemPrompt] = strings.Replace(
		cannedBrandJSON, `"visual_style"`, `"vibe_style"`, 1)

	_, err := runFullPipeline(t, gen)
	var schemaErr *api.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *api.SchemaError for unknown field", err)
	}
}

func TestPipelineGenerationErrorAborts(t *testing.T) {
	gen := newFakeGen()
	callErr := errors.New("api unavailable")
	gen.errs[requirementsSystemPrompt] = callErr

	st, err := runFullPipeline(t, gen)
	if !errors.Is(err, callErr) {
		t.Fatalf("error = %v, want the generation failure", err)
	}

	// The entry agent failed, so only it was called and nothing was written.
	if len(gen.calls) != 1 {
		t.Errorf("generation calls = %d, want 1", len(gen.calls))
	}
	if st.Has(FieldRequirementsDoc) {
		t.Error("requirements doc written despite the failure")
	}
}

func TestFanOutBranchIsolation(t *testing.T) {
	// Each fan-out branch runs with only the requirements doc populated;
	// the sibling's field is absent. Neither branch may depend on it.
	gen := newFakeGen()

	st := NewState("idea")
	if err := st.SetRequirementsDoc(cannedPRD); err != nil {
		t.Fatal(err)
	}
	brand := NewBrandDesigner(gen, nil, nil)
	if err := brand.Run(context.Background(), st); err != nil {
		t.Fatalf("brand designer failed without the architecture map: %v", err)
	}

	st = NewState("idea")
	if err := st.SetRequirementsDoc(cannedPRD); err != nil {
		t.Fatal(err)
	}
	arch := NewArchitecturePlanner(gen, nil, nil)
	if err := arch.Run(context.Background(), st); err != nil {
		t.Fatalf("architecture planner failed without the brand assets: %v", err)
	}
}

func TestBrandDesignerValidation(t *testing.T) {
	tests := []struct {
		name   string
		assets BrandAssets
		valid  bool
	}{
		{"complete", BrandAssets{
			BrandName:    "X",
			Tagline:      "Y",
			ColorPalette: map[string]string{"primary": "#000000"},
			Typography:   map[string]string{"body_font": "Inter"},
		}, true},
		{"missing name", BrandAssets{
			Tagline:      "Y",
			ColorPalette: map[string]string{"primary": "#000000"},
			Typography:   map[string]string{"body_font": "Inter"},
		}, false},
		{"missing palette", BrandAssets{
			BrandName:  "X",
			Tagline:    "Y",
			Typography: map[string]string{"body_font": "Inter"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBrandAssets(&tt.assets)
			if tt.valid && err != nil {
				t.Errorf("validateBrandAssets() = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Error("validateBrandAssets() = nil, want error")
			}
		})
	}
}

func TestGeneratedFilesValidation(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		valid bool
	}{
		{"relative paths", map[string]string{"src/app.js": "x"}, true},
		{"empty mapping", map[string]string{}, false},
		{"empty path", map[string]string{"": "x"}, false},
		{"absolute path", map[string]string{"/etc/passwd": "x"}, false},
		{"escaping path", map[string]string{"../outside.js": "x"}, false},
		{"sneaky escape", map[string]string{"src/../../outside.js": "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGeneratedFiles(tt.files)
			if tt.valid && err != nil {
				t.Errorf("validateGeneratedFiles() = %v, want nil", err)
			}
			if !tt.valid && err == nil {
				t.Error("validateGeneratedFiles() = nil, want error")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	if got := truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("truncate() = %q, want abcd...", got)
	}
}
