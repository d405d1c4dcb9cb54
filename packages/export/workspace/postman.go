package workspace

import (
	"time"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// PostmanEnvironment is Postman's environment export layout.
type PostmanEnvironment struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Values        []PostmanValue `json:"values"`
	Scope         string         `json:"_postman_variable_scope"`
	ExportedAt    string         `json:"_postman_exported_at"`
	ExportedUsing string         `json:"_postman_exported_using"`
}

// PostmanValue holds a single value. Only the selected row of a
// multi-value variable survives.
type PostmanValue struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// ToPostman converts e to Postman's layout.
func ToPostman(e *env.Environment, now time.Time) PostmanEnvironment {
	out := PostmanEnvironment{
		ID:            e.ID,
		Name:          e.Name,
		Values:        make([]PostmanValue, 0, len(e.Variables)),
		Scope:         "environment",
		ExportedAt:    now.UTC().Format(time.RFC3339),
		ExportedUsing: "hitenv",
	}
	for _, v := range e.Variables {
		typ := "default"
		if v.IsSecret {
			typ = "secret"
		}
		out.Values = append(out.Values, PostmanValue{
			Key:     v.Key,
			Value:   v.CurrentValue(),
			Type:    typ,
			Enabled: v.Enabled,
		})
	}
	return out
}
