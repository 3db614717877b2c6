// Package pipeline implements the fixed six-agent generation pipeline:
// the shared run state, the agent units, and the dependency graph that
// executes them with maximal legal concurrency.
package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// Field names one write-once slot in the shared run state. Every field has
// exactly one owning agent unit.
type Field string

const (
	FieldRequirementsDoc Field = "requirements_doc"
	FieldBrandAssets     Field = "brand_assets"
	FieldArchitectureMap Field = "architecture_map"
	FieldGeneratedFiles  Field = "generated_files"
	FieldMarketingPlan   Field = "marketing_plan"
	FieldInstallGuide    Field = "install_guide"
)

// FieldConflictError reports a second write to a write-once state field.
type FieldConflictError struct {
	Field Field
}

func (e *FieldConflictError) Error() string {
	return fmt.Sprintf("field %q already written", e.Field)
}

// BrandAssets is the structured brand guide produced by the brand designer.
type BrandAssets struct {
	BrandName       string            `json:"brand_name"`
	Tagline         string            `json:"tagline"`
	ColorPalette    map[string]string `json:"color_palette"`
	Typography      map[string]string `json:"typography"`
	VisualStyle     string            `json:"visual_style"`
	LogoPrompt      string            `json:"logo_prompt"`
	UIMockupPrompts []string          `json:"ui_mockup_prompts"`
}

// TechStack names the technology choices in an architecture map.
type TechStack struct {
	Frontend       []string `json:"frontend"`
	Backend        []string `json:"backend"`
	Database       string   `json:"database"`
	Infrastructure []string `json:"infrastructure"`
}

// KeyModule is one named module of the planned system.
type KeyModule struct {
	Name         string   `json:"name"`
	Files        []string `json:"files"`
	Dependencies []string `json:"dependencies"`
}

// APIEndpoint is one planned HTTP endpoint.
type APIEndpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// ArchitectureMap is the structured technical plan produced by the
// architecture planner. FileStructure keeps the model's nested directory
// layout as-is; only the code generator interprets it.
type ArchitectureMap struct {
	TechStack           TechStack      `json:"tech_stack"`
	ArchitecturePattern string         `json:"architecture_pattern"`
	FileStructure       map[string]any `json:"file_structure"`
	KeyModules          []KeyModule    `json:"key_modules"`
	APIEndpoints        []APIEndpoint  `json:"api_endpoints"`
}

// Exchange is one prompt or response appended to the run history.
type Exchange struct {
	Agent   string    `json:"agent"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Metadata carries run-level bookkeeping: wall-clock bounds, token totals,
// and per-agent timing.
type Metadata struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	TotalTokens  int64
	AgentSeconds map[string]float64
	AgentTokens  map[string]int64
}

// State is the shared state one run's agent units read and write. Output
// fields are write-once: the first write claims the field, any later write
// returns a FieldConflictError. All methods are safe for concurrent use by
// the fan-out branches.
type State struct {
	mu sync.Mutex

	idea    string
	written map[Field]bool

	requirementsDoc string
	brandAssets     *BrandAssets
	architectureMap *ArchitectureMap
	generatedFiles  map[string]string
	marketingPlan   string
	installGuide    string

	history []Exchange
	meta    Metadata
}

// NewState creates the state for one run, seeded with the product idea.
func NewState(idea string) *State {
	return &State{
		idea:    idea,
		written: make(map[Field]bool),
		meta: Metadata{
			AgentSeconds: make(map[string]float64),
			AgentTokens:  make(map[string]int64),
		},
	}
}

// Idea returns the product idea the run was started with.
func (st *State) Idea() string {
	return st.idea
}

// Has reports whether a field has been written.
func (st *State) Has(f Field) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.written[f]
}

// claim marks a field written, enforcing write-once. Callers hold st.mu.
func (st *State) claim(f Field) error {
	if st.written[f] {
		return &FieldConflictError{Field: f}
	}
	st.written[f] = true
	return nil
}

// SetRequirementsDoc writes the requirements document field.
func (st *State) SetRequirementsDoc(doc string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldRequirementsDoc); err != nil {
		return err
	}
	st.requirementsDoc = doc
	return nil
}

// RequirementsDoc returns the requirements document, if written.
func (st *State) RequirementsDoc() (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.requirementsDoc, st.written[FieldRequirementsDoc]
}

// SetBrandAssets writes the brand assets field.
func (st *State) SetBrandAssets(a *BrandAssets) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldBrandAssets); err != nil {
		return err
	}
	st.brandAssets = a
	return nil
}

// BrandAssets returns the brand assets, if written.
func (st *State) BrandAssets() (*BrandAssets, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.brandAssets, st.written[FieldBrandAssets]
}

// SetArchitectureMap writes the architecture map field.
func (st *State) SetArchitectureMap(a *ArchitectureMap) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldArchitectureMap); err != nil {
		return err
	}
	st.architectureMap = a
	return nil
}

// ArchitectureMap returns the architecture map, if written.
func (st *State) ArchitectureMap() (*ArchitectureMap, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.architectureMap, st.written[FieldArchitectureMap]
}

// SetGeneratedFiles writes the generated files field.
func (st *State) SetGeneratedFiles(files map[string]string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldGeneratedFiles); err != nil {
		return err
	}
	st.generatedFiles = files
	return nil
}

// GeneratedFiles returns the generated file mapping, if written.
func (st *State) GeneratedFiles() (map[string]string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.generatedFiles, st.written[FieldGeneratedFiles]
}

// SetMarketingPlan writes the marketing plan field.
func (st *State) SetMarketingPlan(plan string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldMarketingPlan); err != nil {
		return err
	}
	st.marketingPlan = plan
	return nil
}

// MarketingPlan returns the marketing plan, if written.
func (st *State) MarketingPlan() (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.marketingPlan, st.written[FieldMarketingPlan]
}

// SetInstallGuide writes the install guide field.
func (st *State) SetInstallGuide(guide string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.claim(FieldInstallGuide); err != nil {
		return err
	}
	st.installGuide = guide
	return nil
}

// InstallGuide returns the install guide, if written.
func (st *State) InstallGuide() (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.installGuide, st.written[FieldInstallGuide]
}

// AppendHistory appends one exchange to the run history.
func (st *State) AppendHistory(e Exchange) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.history = append(st.history, e)
}

// History returns a copy of the run history.
func (st *State) History() []Exchange {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Exchange, len(st.history))
	copy(out, st.history)
	return out
}

// RecordAgent accumulates one unit's elapsed time and token count.
func (st *State) RecordAgent(name string, elapsed time.Duration, tokens int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.meta.AgentSeconds[name] += elapsed.Seconds()
	st.meta.AgentTokens[name] += tokens
	st.meta.TotalTokens += tokens
}

// MarkStarted stamps the run start time.
func (st *State) MarkStarted() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.meta.StartedAt = time.Now()
}

// MarkFinished stamps the run finish time.
func (st *State) MarkFinished() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.meta.FinishedAt = time.Now()
}

// Meta returns a snapshot of the run metadata.
func (st *State) Meta() Metadata {
	st.mu.Lock()
	defer st.mu.Unlock()

	m := Metadata{
		StartedAt:    st.meta.StartedAt,
		FinishedAt:   st.meta.FinishedAt,
		TotalTokens:  st.meta.TotalTokens,
		AgentSeconds: make(map[string]float64, len(st.meta.AgentSeconds)),
		AgentTokens:  make(map[string]int64, len(st.meta.AgentTokens)),
	}
	for k, v := range st.meta.AgentSeconds {
		m.AgentSeconds[k] = v
	}
	for k, v := range st.meta.AgentTokens {
		m.AgentTokens[k] = v
	}
	return m
}
