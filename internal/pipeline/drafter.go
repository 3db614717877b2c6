package pipeline

import (
	"context"
)

// requirementsSystemPrompt is the fixed instruction for the requirements drafter.
const requirementsSystemPrompt = `You are a Senior Product Owner with 15 years of experience at top tech companies.
Your task is to transform a raw product idea into a comprehensive Product Requirements Document (PRD).

The PRD must include:
1. Executive Summary
2. Problem Statement
3. Target Users & Personas
4. Core Features (MVP and Future)
5. User Stories (at least 5)
6. Success Metrics (KPIs)
7. Technical Constraints
8. Timeline Estimate

Be specific, actionable, and realistic. Format the output in clear markdown.`

// RequirementsDrafter is the entry unit: it turns the raw idea into the
// requirements document every downstream unit builds on.
type RequirementsDrafter struct {
	unit
}

// NewRequirementsDrafter creates the requirements drafter unit.
func NewRequirementsDrafter(gen Generator, events Emitter, logger *DebugLogger) *RequirementsDrafter {
	return &RequirementsDrafter{unit: newUnit(gen, events, logger)}
}

func (d *RequirementsDrafter) Name() string      { return "requirements_drafter" }
func (d *RequirementsDrafter) Requires() []Field { return nil }
func (d *RequirementsDrafter) Produces() []Field { return []Field{FieldRequirementsDoc} }

// Run issues the single generation call and writes the requirements document.
func (d *RequirementsDrafter) Run(ctx context.Context, st *State) error {
	start := d.begin(d.Name())

	prompt := "Product Idea: " + st.Idea()

	doc, usage, err := d.gen.GenerateText(ctx, requirementsSystemPrompt, prompt)
	if err != nil {
		return d.finish(st, d.Name(), start, usage, err)
	}

	if err := st.SetRequirementsDoc(doc); err != nil {
		return d.finish(st, d.Name(), start, usage, err)
	}
	record(st, d.Name(), prompt, doc)

	return d.finish(st, d.Name(), start, usage, nil)
}
