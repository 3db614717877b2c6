package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// onboardingSystemPrompt is the fixed instruction for the onboarding writer.
const onboardingSystemPrompt = `You are an Onboarding Specialist with expertise in technical documentation and developer experience.
Based on the generated source code and architecture, create a comprehensive INSTALL_GUIDE.md that explains how to set up and run the generated project.

The guide must be specific to the actual architecture and tech stack chosen. Include:

1. Prerequisites (required software versions, system requirements, accounts/API keys)
2. Installation Steps (setup instructions, dependency installation, configuration, environment variables)
3. Project Structure Overview (key directories, important files)
4. Running the Project (dev server commands, production builds, database setup, verification)
5. Common Issues & Troubleshooting
6. Next Steps

Be extremely specific with commands, file paths, and configuration.
Do NOT include instructions for running the generation pipeline itself - only for the GENERATED project.`

// onboardingFileListLimit caps how many generated file paths are embedded in
// the onboarding writer's prompt.
const onboardingFileListLimit = 20

// OnboardingWriter is the optional terminal unit. It documents how to install
// and run the generated project.
type OnboardingWriter struct {
	unit
}

// NewOnboardingWriter creates the onboarding writer unit.
func NewOnboardingWriter(gen Generator, events Emitter, logger *DebugLogger) *OnboardingWriter {
	return &OnboardingWriter{unit: newUnit(gen, events, logger)}
}

func (w *OnboardingWriter) Name() string { return "onboarding_writer" }
func (w *OnboardingWriter) Requires() []Field {
	return []Field{FieldGeneratedFiles, FieldArchitectureMap, FieldMarketingPlan}
}
func (w *OnboardingWriter) Produces() []Field { return []Field{FieldInstallGuide} }

// Run issues the single generation call and writes the install guide.
func (w *OnboardingWriter) Run(ctx context.Context, st *State) error {
	start := w.begin(w.Name())

	if err := requireFields(st, w.Name(), w.Requires()...); err != nil {
		return err
	}
	arch, _ := st.ArchitectureMap()
	files, _ := st.GeneratedFiles()

	archJSON, err := json.MarshalIndent(arch, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: marshal architecture: %w", w.Name(), err)
	}
	stackJSON, err := json.MarshalIndent(arch.TechStack, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: marshal tech stack: %w", w.Name(), err)
	}

	prompt := fmt.Sprintf(`Product Idea: %s

Architecture & Tech Stack:
%s

Full Architecture Map:
%s

Generated Source Files (%d total):
%s

Key Files to Note:
- Look for package.json, requirements.txt, Dockerfile, or similar dependency files
- Check for README files or configuration examples
- Identify entry points (main.js, app.py, index.jsx, etc.)`,
		st.Idea(), stackJSON, archJSON, len(files), fileListing(files))

	guide, usage, err := w.gen.GenerateText(ctx, onboardingSystemPrompt, prompt)
	if err != nil {
		return w.finish(st, w.Name(), start, usage, err)
	}

	if err := st.SetInstallGuide(guide); err != nil {
		return w.finish(st, w.Name(), start, usage, err)
	}
	record(st, w.Name(), prompt, guide)

	return w.finish(st, w.Name(), start, usage, nil)
}

// fileListing renders a bounded, sorted list of generated file paths.
func fileListing(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for i, p := range paths {
		if i == onboardingFileListLimit {
			b.WriteString("... (and more)\n")
			break
		}
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return strings.TrimRight(b.String(), "\n")
}
