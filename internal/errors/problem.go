package errors

import (
	"encoding/json"
	"maps"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails is an RFC 7807 error body. Extensions are written as
// top-level members next to the standard ones.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"-"`
}

func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:     problemType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	}
}

// WithExtension sets one extension member and returns pd for chaining.
func (pd *ProblemDetails) WithExtension(key string, value any) *ProblemDetails {
	if pd.Extensions == nil {
		pd.Extensions = make(map[string]any)
	}
	pd.Extensions[key] = value
	return pd
}

func (pd *ProblemDetails) Error() string {
	if pd.Detail == "" {
		return pd.Title
	}
	return pd.Title + ": " + pd.Detail
}

// Render sets the response status for render.Render.
func (pd *ProblemDetails) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON flattens Extensions. Standard members win on a name clash.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	type standard ProblemDetails
	if len(pd.Extensions) == 0 {
		return json.Marshal((*standard)(pd))
	}

	body, err := json.Marshal((*standard)(pd))
	if err != nil {
		return nil, err
	}
	var members map[string]any
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, err
	}

	out := maps.Clone(pd.Extensions)
	maps.Copy(out, members)
	return json.Marshal(out)
}
