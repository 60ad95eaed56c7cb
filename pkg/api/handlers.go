package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chicogong/ffmpeg-chain/pkg/graph"
	"github.com/chicogong/ffmpeg-chain/pkg/graphdoc"
	"github.com/chicogong/ffmpeg-chain/pkg/registry"
	"github.com/chicogong/ffmpeg-chain/pkg/schemas"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error       string               `json:"error"`
	Message     string               `json:"message"`
	Code        int                  `json:"code"`
	Diagnostics []schemas.Diagnostic `json:"diagnostics,omitempty"`
}

// FilterView is the listing form of a registry entry
type FilterView struct {
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Description string       `json:"description,omitempty"`
	Inputs      []PadView    `json:"inputs"`
	Outputs     []PadView    `json:"outputs"`
	Options     []OptionView `json:"options"`
	CountOption string       `json:"count_option,omitempty"`
}

// PadView describes one filter pad
type PadView struct {
	Name     string            `json:"name"`
	Media    schemas.MediaType `json:"media"`
	Variadic bool              `json:"variadic,omitempty"`
	Min      int               `json:"min,omitempty"`
	Optional bool              `json:"optional,omitempty"`
}

// OptionView describes one filter option
type OptionView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Default     string   `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// FilterListResponse is returned by GET /api/v1/filters
type FilterListResponse struct {
	Version string       `json:"version"`
	Filters []FilterView `json:"filters"`
}

// ValidateResponse is returned by POST /api/v1/validate
type ValidateResponse struct {
	Valid       bool                 `json:"valid"`
	Diagnostics []schemas.Diagnostic `json:"diagnostics"`
}

// CompileResponse is returned by POST /api/v1/compile
type CompileResponse struct {
	Args          []string `json:"args"`
	FilterComplex string   `json:"filter_complex,omitempty"`
	FilterGraph   string   `json:"filter_graph,omitempty"`
	Command       string   `json:"command"`
}

// HandleHealth handles GET /health
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"time":     time.Now(),
		"registry": s.registry.Version(),
	})
}

// HandleListFilters handles GET /api/v1/filters, optionally filtered by
// ?category=
func (s *Server) HandleListFilters(w http.ResponseWriter, r *http.Request) {
	specs := s.registry.List()
	if c := r.URL.Query().Get("category"); c != "" {
		specs = s.registry.ListByCategory(registry.Category(c))
	}

	resp := FilterListResponse{
		Version: s.registry.Version(),
		Filters: make([]FilterView, len(specs)),
	}
	for i, spec := range specs {
		resp.Filters[i] = filterView(spec)
	}
	sendJSON(w, http.StatusOK, resp)
}

// HandleGetFilter handles GET /api/v1/filters/{name}
func (s *Server) HandleGetFilter(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	spec, err := s.registry.Lookup(name)
	if errors.Is(err, registry.ErrNotFound) {
		sendError(w, http.StatusNotFound, "filter_not_found", fmt.Sprintf("Filter %s not found", name))
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "registry_error", err.Error())
		return
	}
	sendJSON(w, http.StatusOK, filterView(spec))
}

// HandleValidate handles POST /api/v1/validate. Construction errors and
// validator findings are both reported as diagnostics with status 200.
func (s *Server) HandleValidate(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r)
	if !ok {
		return
	}

	resp := ValidateResponse{Valid: true, Diagnostics: []schemas.Diagnostic{}}
	g, _, err := graphdoc.Build(s.registry, doc)
	if err != nil {
		diags := graph.Diagnostics(err)
		if len(diags) == 0 {
			sendError(w, http.StatusBadRequest, "invalid_document", err.Error())
			return
		}
		resp.Valid = false
		resp.Diagnostics = wireDiagnostics(diags)
		sendJSON(w, http.StatusOK, resp)
		return
	}

	if diags := s.compiler.Validate(g); len(diags) > 0 {
		resp.Valid = false
		resp.Diagnostics = wireDiagnostics(diags)
	}
	sendJSON(w, http.StatusOK, resp)
}

// HandleCompile handles POST /api/v1/compile
func (s *Server) HandleCompile(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r)
	if !ok {
		return
	}

	g, _, err := graphdoc.Build(s.registry, doc)
	if err != nil {
		sendGraphError(w, err)
		return
	}
	spec, err := s.compiler.Compile(g)
	if err != nil {
		sendGraphError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, CompileResponse{
		Args:          spec.Args,
		FilterComplex: spec.FilterComplex,
		FilterGraph:   spec.FilterGraph,
		Command:       spec.String(),
	})
}

// Helper methods

func decodeDocument(w http.ResponseWriter, r *http.Request) (*graphdoc.Document, bool) {
	doc, err := graphdoc.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("Invalid request body: %v", err))
		return nil, false
	}
	return doc, true
}

// sendGraphError reports construction and validation errors as 422 with
// diagnostics, and anything else about the document as 400
func sendGraphError(w http.ResponseWriter, err error) {
	diags := graph.Diagnostics(err)
	if len(diags) == 0 {
		sendError(w, http.StatusBadRequest, "invalid_document", err.Error())
		return
	}
	sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:       "invalid_graph",
		Message:     err.Error(),
		Code:        http.StatusUnprocessableEntity,
		Diagnostics: wireDiagnostics(diags),
	})
}

func wireDiagnostics(diags []*graph.Diagnostic) []schemas.Diagnostic {
	out := make([]schemas.Diagnostic, len(diags))
	for i, d := range diags {
		out[i] = d.Wire()
	}
	return out
}

func filterView(spec *registry.FilterSpec) FilterView {
	v := FilterView{
		Name:        spec.Name,
		Category:    string(spec.Category),
		Description: spec.Description,
		Inputs:      padViews(spec.Inputs),
		Outputs:     padViews(spec.Outputs),
		Options:     make([]OptionView, len(spec.Options)),
		CountOption: spec.CountOption,
	}
	for i, o := range spec.Options {
		ov := OptionView{
			Name:        o.Name,
			Type:        string(o.Type),
			Required:    o.Required,
			Description: o.Description,
		}
		if o.Default != nil {
			ov.Default = fmt.Sprint(o.Default)
		}
		if o.Rules != nil {
			ov.Min, ov.Max, ov.Enum = o.Rules.Min, o.Rules.Max, o.Rules.Enum
		}
		v.Options[i] = ov
	}
	return v
}

func padViews(pads []registry.PadSpec) []PadView {
	out := make([]PadView, len(pads))
	for i, p := range pads {
		out[i] = PadView{Name: p.Name, Media: p.Media, Variadic: p.Variadic, Min: p.Min, Optional: p.Optional}
	}
	return out
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, status int, code, message string) {
	sendJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Code:    status,
	})
}
