package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// codegenSystemPrompt is the fixed instruction for the code generator.
const codegenSystemPrompt = `You are a Lead Developer capable of writing production-quality code.
Based on the architecture plan and brand assets, generate the core source code files.

Return your response as a JSON object where keys are file paths and values are code content:
{
  "src/App.jsx": "import React...",
  "src/components/Header.jsx": "const Header = () => {...}",
  "src/styles/theme.js": "export const theme = {...}",
  "backend/server.js": "const express = require('express')...",
  "README.md": "# Project Name\n\n## Setup..."
}

Generate at least 5-8 key files including:
- Main application entry point
- At least 2 reusable components
- Styling/theme file (using brand colors)
- API/backend setup
- README with setup instructions
- Configuration files

Return ONLY the JSON object, no other text.
Code must be production-ready with error handling, well-commented,
follow best practices, and use the brand colors from the brand assets.`

// CodeGenerator is the join node: it must not start until both fan-out
// branches have written their fields, and it is the only writer of the
// generated file tree.
type CodeGenerator struct {
	unit
}

// NewCodeGenerator creates the code generator unit.
func NewCodeGenerator(gen Generator, events Emitter, logger *DebugLogger) *CodeGenerator {
	return &CodeGenerator{unit: newUnit(gen, events, logger)}
}

func (g *CodeGenerator) Name() string { return "code_generator" }
func (g *CodeGenerator) Requires() []Field {
	return []Field{FieldBrandAssets, FieldArchitectureMap}
}
func (g *CodeGenerator) Produces() []Field { return []Field{FieldGeneratedFiles} }

// Run issues the schema-constrained generation call and writes the file tree.
func (g *CodeGenerator) Run(ctx context.Context, st *State) error {
	start := g.begin(g.Name())

	if err := requireFields(st, g.Name(), g.Requires()...); err != nil {
		return err
	}
	arch, _ := st.ArchitectureMap()
	brand, _ := st.BrandAssets()

	archJSON, err := json.MarshalIndent(arch, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: marshal architecture: %w", g.Name(), err)
	}
	brandJSON, err := json.MarshalIndent(brand, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: marshal brand assets: %w", g.Name(), err)
	}

	prompt := fmt.Sprintf("Product Idea: %s\n\nArchitecture:\n%s\n\nBrand Assets:\n%s",
		st.Idea(), archJSON, brandJSON)

	files := make(map[string]string)
	usage, err := g.gen.GenerateJSON(ctx, codegenSystemPrompt, prompt, &files)
	if err != nil {
		return g.finish(st, g.Name(), start, usage, err)
	}

	if err := validateGeneratedFiles(files); err != nil {
		return g.finish(st, g.Name(), start, usage, err)
	}

	if err := st.SetGeneratedFiles(files); err != nil {
		return g.finish(st, g.Name(), start, usage, err)
	}
	record(st, g.Name(), prompt, fmt.Sprintf("%d files generated", len(files)))

	return g.finish(st, g.Name(), start, usage, nil)
}

// validateGeneratedFiles enforces the path->content contract: a non-empty
// mapping whose keys are clean relative paths that stay inside the export
// directory.
func validateGeneratedFiles(files map[string]string) error {
	if len(files) == 0 {
		return fmt.Errorf("generated files mapping is empty")
	}
	for p := range files {
		if p == "" {
			return fmt.Errorf("generated files mapping contains an empty path")
		}
		if strings.HasPrefix(p, "/") {
			return fmt.Errorf("generated file path %q is absolute", p)
		}
		clean := path.Clean(p)
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("generated file path %q escapes the output directory", p)
		}
	}
	return nil
}
