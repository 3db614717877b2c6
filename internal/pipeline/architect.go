package pipeline

import (
	"context"
	"fmt"
)

// architectureSystemPrompt is the fixed instruction for the architecture planner.
const architectureSystemPrompt = `You are a Solutions Architect with expertise in modern software design patterns.
Based on the PRD, design a complete technical architecture and file structure.

Return your response as a JSON object with this structure:
{
  "tech_stack": {
    "frontend": ["technology", "framework"],
    "backend": ["technology", "framework"],
    "database": "database choice",
    "infrastructure": ["services"]
  },
  "architecture_pattern": "description (e.g., microservices, monolith, JAMstack)",
  "file_structure": {
    "root/": {
      "src/": {
        "components/": ["file1.jsx", "file2.jsx"],
        "services/": ["api.js"],
        "utils/": ["helper.js"]
      },
      "public/": ["index.html"],
      "tests/": ["test1.spec.js"]
    }
  },
  "key_modules": [
    {
      "name": "Authentication",
      "files": ["auth.js", "login.jsx"],
      "dependencies": ["jwt", "bcrypt"]
    }
  ],
  "api_endpoints": [
    {
      "method": "POST",
      "path": "/api/users",
      "description": "Create new user"
    }
  ]
}

Return ONLY the JSON object, no other text.
Be practical and choose technologies appropriate for the project scale.`

// architectureContextChars bounds how much of the requirements document is
// embedded in the architecture planner's prompt.
const architectureContextChars = 800

// ArchitecturePlanner produces the architecture map. It runs on the second
// fan-out branch, concurrently with the brand designer, and reads only the
// requirements document.
type ArchitecturePlanner struct {
	unit
}

// NewArchitecturePlanner creates the architecture planner unit.
func NewArchitecturePlanner(gen Generator, events Emitter, logger *DebugLogger) *ArchitecturePlanner {
	return &ArchitecturePlanner{unit: newUnit(gen, events, logger)}
}

func (p *ArchitecturePlanner) Name() string      { return "architecture_planner" }
func (p *ArchitecturePlanner) Requires() []Field { return []Field{FieldRequirementsDoc} }
func (p *ArchitecturePlanner) Produces() []Field { return []Field{FieldArchitectureMap} }

// Run issues the schema-constrained generation call and writes the architecture map.
func (p *ArchitecturePlanner) Run(ctx context.Context, st *State) error {
	start := p.begin(p.Name())

	if err := requireFields(st, p.Name(), p.Requires()...); err != nil {
		return err
	}
	doc, _ := st.RequirementsDoc()

	prompt := fmt.Sprintf("Product Idea: %s\n\nPRD: %s", st.Idea(), truncate(doc, architectureContextChars))

	var arch ArchitectureMap
	usage, err := p.gen.GenerateJSON(ctx, architectureSystemPrompt, prompt, &arch)
	if err != nil {
		return p.finish(st, p.Name(), start, usage, err)
	}

	if err := validateArchitectureMap(&arch); err != nil {
		return p.finish(st, p.Name(), start, usage, err)
	}

	if err := st.SetArchitectureMap(&arch); err != nil {
		return p.finish(st, p.Name(), start, usage, err)
	}
	record(st, p.Name(), prompt, arch.ArchitecturePattern)

	return p.finish(st, p.Name(), start, usage, nil)
}

// validateArchitectureMap enforces the expected-shape contract on the parsed
// response. A violation fails the unit.
func validateArchitectureMap(a *ArchitectureMap) error {
	switch {
	case a.ArchitecturePattern == "":
		return fmt.Errorf("architecture map missing architecture_pattern")
	case len(a.TechStack.Frontend) == 0 && len(a.TechStack.Backend) == 0:
		return fmt.Errorf("architecture map missing tech_stack")
	case len(a.FileStructure) == 0:
		return fmt.Errorf("architecture map missing file_structure")
	}
	return nil
}
