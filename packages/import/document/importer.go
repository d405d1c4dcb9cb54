// Package document imports workspace exchange documents written by
// packages/export/workspace.
package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
	"github.com/abdul-hamid-achik/hitenv/packages/core/linkgroup"
	"github.com/abdul-hamid-achik/hitenv/packages/export/workspace"
	"github.com/abdul-hamid-achik/hitenv/packages/logging"
	"github.com/abdul-hamid-achik/hitenv/packages/store"
)

// Result describes what an import did.
type Result struct {
	Environments []*env.Environment
	// IDMap maps ids found in the document to the ids assigned on import.
	IDMap map[string]string
	// Repairs lists, per new environment id, the fixes applied to make the
	// imported data valid.
	Repairs   map[string][]string
	Overrides int
	// ActiveGlobal is the new id of the global environment the document
	// marks active, if any. Imported environments are stored inactive;
	// callers decide whether to activate it.
	ActiveGlobal string
}

// Importer writes documents into a repository.
type Importer struct {
	repo      store.Repository
	overrides store.OverrideStore
	logger    zerolog.Logger
}

// Option is a functional option for Importer.
type Option func(*Importer)

// WithOverrides restores the document's collection overrides into s.
func WithOverrides(s store.OverrideStore) Option {
	return func(i *Importer) {
		i.overrides = s
	}
}

// NewImporter creates an importer over repo.
func NewImporter(repo store.Repository, opts ...Option) *Importer {
	i := &Importer{
		repo:   repo,
		logger: logging.GetLogger("import"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportFile reads path and imports it. The encoding follows the extension.
func (i *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return i.Import(ctx, data, workspace.FormatForPath(path))
}

// Import validates data against the document schema, assigns fresh ids,
// repairs every environment and stores them.
func (i *Importer) Import(ctx context.Context, data []byte, format workspace.Format) (*Result, error) {
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}

	res := &Result{
		IDMap:   make(map[string]string),
		Repairs: make(map[string][]string),
	}
	for _, src := range doc.Environments {
		e, merged := i.convert(src)
		if src.ID != "" {
			res.IDMap[src.ID] = e.ID
		}
		if src.IsActive && e.Scope.IsGlobal() && res.ActiveGlobal == "" {
			res.ActiveGlobal = e.ID
		}
		if changes := append(merged, linkgroup.RepairEnvironment(e)...); len(changes) > 0 {
			res.Repairs[e.ID] = changes
			i.logger.Info().Str("env", e.Name).Strs("changes", changes).Msg("Repaired imported environment")
		}
		if err := e.Validate(); err != nil {
			return res, fmt.Errorf("environment %q: %w", e.Name, err)
		}
		res.Environments = append(res.Environments, e)
	}

	// Store only after every environment converted cleanly.
	for _, e := range res.Environments {
		if err := i.repo.Put(ctx, e); err != nil {
			return res, fmt.Errorf("save environment %q: %w", e.Name, err)
		}
	}

	if i.overrides != nil {
		for cid, ref := range doc.ActiveEnvironments {
			newID, ok := res.IDMap[ref]
			if !ok {
				i.logger.Warn().Str("collection", cid).Str("ref", ref).Msg("Override references an environment missing from the document")
				continue
			}
			if err := i.overrides.SetOverride(ctx, cid, newID); err != nil {
				return res, fmt.Errorf("restore override for %s: %w", cid, err)
			}
			res.Overrides++
		}
	}
	i.logger.Debug().Int("environments", len(res.Environments)).Int("overrides", res.Overrides).Msg("Import finished")
	return res, nil
}

// convert builds a fresh environment from src. Repeated keys collapse into
// one variable: the later entry wins and keeps the first position. Each merge
// is reported.
func (i *Importer) convert(src workspace.Environment) (*env.Environment, []string) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "Imported"
	}
	e := env.NewEnvironment(name, src.Scope())
	e.Description = src.Description
	byKey := make(map[string]*env.Variable)
	var merged []string
	for _, val := range src.Values {
		v := &env.Variable{
			ID:            uuid.New().String(),
			Key:           val.Key,
			Values:        append([]string(nil), val.Values...),
			SelectedIndex: val.SelectedValueIndex,
			Enabled:       val.Enabled,
			IsSecret:      val.IsSecret,
			Description:   val.Description,
		}
		if val.LinkGroup != nil {
			v.LinkGroup = *val.LinkGroup
		}
		if existing, ok := byKey[v.Key]; ok {
			v.ID = existing.ID
			*existing = *v
			merged = append(merged, fmt.Sprintf("merged duplicate key %q (later entry kept)", v.Key))
			continue
		}
		byKey[v.Key] = v
		e.Variables = append(e.Variables, v)
	}
	return e, merged
}

// Decode parses and validates a document.
func Decode(data []byte, format workspace.Format) (*workspace.Document, error) {
	jsonData := data
	if format == workspace.FormatYAML {
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, env.Wrap(err, env.CodeInvalidArgument, "failed to parse YAML document")
		}
		converted, err := json.Marshal(generic)
		if err != nil {
			return nil, env.Wrap(err, env.CodeInvalidArgument, "document is not representable as JSON")
		}
		jsonData = converted
	}

	if err := Validate(jsonData); err != nil {
		return nil, err
	}

	var doc workspace.Document
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return nil, env.Wrap(err, env.CodeInvalidArgument, "failed to parse document")
	}
	return &doc, nil
}

// Validate checks JSON data against workspace.Schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(workspace.Schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return env.Wrap(err, env.CodeInvalidArgument, "document is not valid JSON")
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return env.Newf(env.CodeInvalidArgument, "document failed schema validation: %s", strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}
