package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// JSONEnvironment represents one environment in JSON output
type JSONEnvironment struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Scope        string         `json:"scope"`
	CollectionID string         `json:"collectionId,omitempty"`
	Active       bool           `json:"active"`
	Variables    []JSONVariable `json:"variables,omitempty"`
}

// JSONVariable represents one variable in JSON output
type JSONVariable struct {
	ID            string   `json:"id"`
	Key           string   `json:"key"`
	Value         string   `json:"value"`
	Values        []string `json:"values"`
	SelectedIndex int      `json:"selectedIndex"`
	Enabled       bool     `json:"enabled"`
	Secret        bool     `json:"secret,omitempty"`
	LinkGroup     string   `json:"linkGroup,omitempty"`
	GroupLetter   string   `json:"groupLetter,omitempty"`
	Description   string   `json:"description,omitempty"`
}

// JSONResolution represents a resolved template
type JSONResolution struct {
	Template   string      `json:"template"`
	Result     string      `json:"result"`
	Tokens     []JSONToken `json:"tokens"`
	Unresolved []string    `json:"unresolved,omitempty"`
}

// JSONToken represents a single token of a template
type JSONToken struct {
	Key           string `json:"key"`
	Raw           string `json:"raw"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Found         bool   `json:"found"`
	Value         string `json:"value,omitempty"`
	EnvironmentID string `json:"environmentId,omitempty"`
	VariableID    string `json:"variableId,omitempty"`
}

// JSONError represents a failed command
type JSONError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSONFormatter writes each call as one indented JSON document
type JSONFormatter struct {
	writer      io.Writer
	showSecrets bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func WithJSONWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// WithJSONSecrets includes secret values instead of a mask.
func WithJSONSecrets(show bool) JSONOption {
	return func(f *JSONFormatter) {
		f.showSecrets = show
	}
}

func (f *JSONFormatter) FormatEnvironments(envs []*env.Environment, state ActiveState) {
	out := make([]JSONEnvironment, 0, len(envs))
	for _, e := range envs {
		je := f.environment(e, state)
		je.Variables = nil
		out = append(out, je)
	}
	f.encode(out)
}

func (f *JSONFormatter) FormatEnvironment(e *env.Environment, state ActiveState) {
	f.encode(f.environment(e, state))
}

func (f *JSONFormatter) environment(e *env.Environment, state ActiveState) JSONEnvironment {
	je := JSONEnvironment{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Scope:       string(e.Scope.Kind),
		Active:      state.IsActive(e),
	}
	if e.Scope.IsGlobal() {
		je.Scope = string(env.ScopeGlobal)
	} else {
		je.CollectionID = e.Scope.CollectionID
	}

	letters := GroupLetters(e)
	for _, v := range e.Variables {
		values := make([]string, len(v.Values))
		for i, value := range v.Values {
			values[i] = displayValue(v, value, f.showSecrets)
		}
		je.Variables = append(je.Variables, JSONVariable{
			ID:            v.ID,
			Key:           v.Key,
			Value:         displayValue(v, v.CurrentValue(), f.showSecrets),
			Values:        values,
			SelectedIndex: v.SelectedIndex,
			Enabled:       v.Enabled,
			Secret:        v.IsSecret,
			LinkGroup:     v.LinkGroup,
			GroupLetter:   letters[v.LinkGroup],
			Description:   v.Description,
		})
	}
	return je
}

func (f *JSONFormatter) FormatResolution(r *Resolution) {
	out := JSONResolution{
		Template:   r.Template,
		Result:     r.Result,
		Tokens:     make([]JSONToken, 0, len(r.Tokens)),
		Unresolved: r.Unresolved(),
	}
	for _, t := range r.Tokens {
		jt := JSONToken{
			Key:   t.Key,
			Raw:   t.Raw,
			Start: t.Start,
			End:   t.End,
			Found: t.Found,
		}
		if t.Found {
			jt.Value = t.Match.Value
			if t.Secret && !f.showSecrets {
				jt.Value = secretMask
			}
			jt.EnvironmentID = t.Match.EnvironmentID
			jt.VariableID = t.Match.VariableID
		}
		out.Tokens = append(out.Tokens, jt)
	}
	f.encode(out)
}

func (f *JSONFormatter) FormatError(err error) {
	out := JSONError{Error: err.Error()}
	if code := env.CodeOf(err); code != env.CodeUnknown {
		out.Code = string(code)
	}
	f.encode(out)
}

func (f *JSONFormatter) encode(v any) {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
