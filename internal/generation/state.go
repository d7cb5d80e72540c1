package generation

import "errors"

var (
	// ErrStateFinal indicates an update arrived after the state reached a
	// terminal merge (completed or failed). Terminal states never mutate.
	ErrStateFinal = errors.New("generation state is final")

	// ErrInvalidUpdate indicates an update that violates the merge schema.
	ErrInvalidUpdate = errors.New("invalid state update")
)

// State is the accumulated generation state. Stages read it and return an
// Update; Apply is the single mutation path.
type State struct {
	Request Request `json:"request"`

	Constraints []Constraint `json:"constraints"`
	Snippets    []Snippet    `json:"snippets"`

	Architecture ArchitectureSelection `json:"architecture"`
	Design       *DesignSpec           `json:"design,omitempty"`
	ToolPlan     *ToolPlan             `json:"tool_plan,omitempty"`

	Units   []Unit   `json:"units"`
	Reports []Report `json:"reports"`

	RepairAttempts int `json:"repair_attempts"`

	Manifest *Manifest `json:"manifest,omitempty"`

	GenerationComplete bool   `json:"generation_complete"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// NewState creates the initial state for a request.
func NewState(req Request) *State {
	return &State{Request: req}
}

// Final reports whether the state has reached a terminal merge. A state is
// terminal once the run completed or a fatal error was recorded.
func (s *State) Final() bool {
	return s.GenerationComplete || s.ErrorMessage != ""
}

// Clone returns a deep copy. Snapshots handed to concurrent readers must
// not alias the live slices.
func (s *State) Clone() *State {
	c := *s
	c.Constraints = append([]Constraint(nil), s.Constraints...)
	c.Snippets = append([]Snippet(nil), s.Snippets...)
	c.Units = cloneUnits(s.Units)
	c.Reports = cloneReports(s.Reports)
	c.Architecture.Candidates = append([]PatternScore(nil), s.Architecture.Candidates...)
	if s.Design != nil {
		d := *s.Design
		d.Sections = append([]SectionPlan(nil), s.Design.Sections...)
		d.Nodes = append([]NodeSpec(nil), s.Design.Nodes...)
		d.Edges = append([]EdgeSpec(nil), s.Design.Edges...)
		c.Design = &d
	}
	if s.ToolPlan != nil {
		p := *s.ToolPlan
		p.Tools = append([]ToolSpec(nil), s.ToolPlan.Tools...)
		p.Imports = append([]string(nil), s.ToolPlan.Imports...)
		c.ToolPlan = &p
	}
	if s.Manifest != nil {
		m := *s.Manifest
		m.Reports = cloneReports(s.Manifest.Reports)
		if s.Manifest.Files != nil {
			m.Files = make(map[string]string, len(s.Manifest.Files))
			for k, v := range s.Manifest.Files {
				m.Files[k] = v
			}
		}
		c.Manifest = &m
	}
	if s.Request.Hints != nil {
		c.Request.Hints = make(map[string]string, len(s.Request.Hints))
		for k, v := range s.Request.Hints {
			c.Request.Hints[k] = v
		}
	}
	return &c
}

func cloneUnits(units []Unit) []Unit {
	if units == nil {
		return nil
	}
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = u
		if u.Metadata != nil {
			out[i].Metadata = make(map[string]string, len(u.Metadata))
			for k, v := range u.Metadata {
				out[i].Metadata[k] = v
			}
		}
	}
	return out
}

func cloneReports(reports []Report) []Report {
	if reports == nil {
		return nil
	}
	out := make([]Report, len(reports))
	for i, r := range reports {
		out[i] = r
		out[i].Suggestions = append([]string(nil), r.Suggestions...)
	}
	return out
}
