package pipeline

import (
	"context"
	"fmt"
)

// brandSystemPrompt is the fixed instruction for the brand designer.
const brandSystemPrompt = `You are a Creative Director specializing in brand identity and visual design.
Based on the product idea and PRD, create a comprehensive brand guide.

Return your response as a JSON object with this structure:
{
  "brand_name": "suggested brand name",
  "tagline": "compelling tagline",
  "color_palette": {
    "primary": "#HEX",
    "secondary": "#HEX",
    "accent": "#HEX",
    "background": "#HEX",
    "text": "#HEX"
  },
  "typography": {
    "heading_font": "font name",
    "body_font": "font name"
  },
  "visual_style": "description of visual direction",
  "logo_prompt": "detailed prompt for AI logo generation",
  "ui_mockup_prompts": ["prompt1", "prompt2", "prompt3"]
}

Return ONLY the JSON object, no other text.
Be creative but align with the product's purpose and target audience.`

// brandContextChars bounds how much of the requirements document is embedded
// in the brand designer's prompt.
const brandContextChars = 500

// BrandDesigner produces the brand guide. It runs on the first fan-out
// branch, concurrently with the architecture planner, and reads only the
// requirements document.
type BrandDesigner struct {
	unit
}

// NewBrandDesigner creates the brand designer unit.
func NewBrandDesigner(gen Generator, events Emitter, logger *DebugLogger) *BrandDesigner {
	return &BrandDesigner{unit: newUnit(gen, events, logger)}
}

func (b *BrandDesigner) Name() string      { return "brand_designer" }
func (b *BrandDesigner) Requires() []Field { return []Field{FieldRequirementsDoc} }
func (b *BrandDesigner) Produces() []Field { return []Field{FieldBrandAssets} }

// Run issues the schema-constrained generation call and writes the brand guide.
func (b *BrandDesigner) Run(ctx context.Context, st *State) error {
	start := b.begin(b.Name())

	if err := requireFields(st, b.Name(), b.Requires()...); err != nil {
		return err
	}
	doc, _ := st.RequirementsDoc()

	prompt := fmt.Sprintf("Product Idea: %s\n\nPRD Summary: %s", st.Idea(), truncate(doc, brandContextChars))

	var assets BrandAssets
	usage, err := b.gen.GenerateJSON(ctx, brandSystemPrompt, prompt, &assets)
	if err != nil {
		return b.finish(st, b.Name(), start, usage, err)
	}

	if err := validateBrandAssets(&assets); err != nil {
		return b.finish(st, b.Name(), start, usage, err)
	}

	if err := st.SetBrandAssets(&assets); err != nil {
		return b.finish(st, b.Name(), start, usage, err)
	}
	record(st, b.Name(), prompt, assets.BrandName+" — "+assets.Tagline)

	return b.finish(st, b.Name(), start, usage, nil)
}

// validateBrandAssets enforces the expected-shape contract on the parsed
// response. A violation fails the unit.
func validateBrandAssets(a *BrandAssets) error {
	switch {
	case a.BrandName == "":
		return fmt.Errorf("brand assets missing brand_name")
	case a.Tagline == "":
		return fmt.Errorf("brand assets missing tagline")
	case len(a.ColorPalette) == 0:
		return fmt.Errorf("brand assets missing color_palette")
	case len(a.Typography) == 0:
		return fmt.Errorf("brand assets missing typography")
	}
	return nil
}
