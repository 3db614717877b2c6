package pipeline

import (
	"context"
	"fmt"
)

// marketingSystemPrompt is the fixed instruction for the marketing strategist.
const marketingSystemPrompt = `You are a Growth Hacker with expertise in viral marketing and user acquisition.
Based on the complete project (PRD, brand, and code), create a comprehensive Go-To-Market strategy.

Include:
1. Target Audience Segmentation
2. Unique Value Proposition (UVP)
3. Launch Strategy (phases)
4. Marketing Channels (ranked by priority)
   - Content Marketing
   - Social Media Strategy
   - Paid Advertising
   - SEO Strategy
   - Community Building
5. Growth Metrics & Goals
6. Budget Allocation (percentages)
7. First 90 Days Action Plan
8. Viral Loop Mechanics
9. Retention Strategies
10. Sample Social Media Posts (5 examples)

Be specific with tactics, timelines, and expected outcomes.`

// marketingContextChars bounds how much of the requirements document is
// embedded in the marketing strategist's prompt.
const marketingContextChars = 500

// MarketingStrategist runs in the sequential tail after the code generator
// and produces the go-to-market plan.
type MarketingStrategist struct {
	unit
}

// NewMarketingStrategist creates the marketing strategist unit.
func NewMarketingStrategist(gen Generator, events Emitter, logger *DebugLogger) *MarketingStrategist {
	return &MarketingStrategist{unit: newUnit(gen, events, logger)}
}

func (m *MarketingStrategist) Name() string { return "marketing_strategist" }
func (m *MarketingStrategist) Requires() []Field {
	return []Field{FieldRequirementsDoc, FieldBrandAssets, FieldGeneratedFiles}
}
func (m *MarketingStrategist) Produces() []Field { return []Field{FieldMarketingPlan} }

// Run issues the single generation call and writes the marketing plan.
func (m *MarketingStrategist) Run(ctx context.Context, st *State) error {
	start := m.begin(m.Name())

	if err := requireFields(st, m.Name(), m.Requires()...); err != nil {
		return err
	}
	doc, _ := st.RequirementsDoc()
	brand, _ := st.BrandAssets()
	files, _ := st.GeneratedFiles()

	prompt := fmt.Sprintf(`Product Idea: %s

Product Overview:
%s

Brand Identity:
Brand Name: %s
Tagline: %s

Project Files Generated: %d files`,
		st.Idea(), truncate(doc, marketingContextChars), brand.BrandName, brand.Tagline, len(files))

	plan, usage, err := m.gen.GenerateText(ctx, marketingSystemPrompt, prompt)
	if err != nil {
		return m.finish(st, m.Name(), start, usage, err)
	}

	if err := st.SetMarketingPlan(plan); err != nil {
		return m.finish(st, m.Name(), start, usage, err)
	}
	record(st, m.Name(), prompt, plan)

	return m.finish(st, m.Name(), start, usage, nil)
}
