package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

// Format selects the encoding of an exported document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml and yml in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", env.Newf(env.CodeInvalidArgument, "unsupported export format %q (json, yaml)", s)
}

// FormatForPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

// Source is what the exporter reads from. Every store.Store satisfies it.
type Source interface {
	List(ctx context.Context) ([]*env.Environment, error)
	Overrides(ctx context.Context) (map[string]string, error)
}

// Exporter builds and writes documents.
type Exporter struct {
	format      Format
	collections map[string]bool
	globals     bool
	now         func() time.Time
}

// Option is a functional option for Exporter.
type Option func(*Exporter)

// WithFormat sets the output encoding.
func WithFormat(f Format) Option {
	return func(x *Exporter) {
		x.format = f
	}
}

// WithCollections limits collection-scoped environments to the given
// collections. Global environments are still exported.
func WithCollections(ids ...string) Option {
	return func(x *Exporter) {
		if x.collections == nil {
			x.collections = make(map[string]bool)
		}
		for _, id := range ids {
			x.collections[id] = true
		}
	}
}

// WithGlobals controls whether global environments are exported.
func WithGlobals(include bool) Option {
	return func(x *Exporter) {
		x.globals = include
	}
}

// WithClock replaces time.Now for the export timestamp.
func WithClock(now func() time.Time) Option {
	return func(x *Exporter) {
		x.now = now
	}
}

// NewExporter creates an exporter writing JSON with every environment.
func NewExporter(opts ...Option) *Exporter {
	x := &Exporter{
		format:  FormatJSON,
		globals: true,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Exporter) include(e *env.Environment) bool {
	if e.Scope.IsGlobal() {
		return x.globals
	}
	return x.collections == nil || x.collections[e.Scope.CollectionID]
}

// Build collects the environments of src into a document. Overrides that
// point at environments outside the document are dropped.
func (x *Exporter) Build(ctx context.Context, src Source) (*Document, error) {
	envs, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	overrides, err := src.Overrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	doc := NewDocument()
	doc.ExportedAt = x.now().UTC().Format(time.RFC3339)
	exported := make(map[string]bool, len(envs))
	for _, e := range envs {
		if !x.include(e) {
			continue
		}
		doc.Environments = append(doc.Environments, FromEnvironment(e))
		exported[e.ID] = true
	}
	for cid, envID := range overrides {
		if !exported[envID] {
			continue
		}
		if doc.ActiveEnvironments == nil {
			doc.ActiveEnvironments = make(map[string]string)
		}
		doc.ActiveEnvironments[cid] = envID
	}
	return doc, nil
}

// Export builds a document from src and writes it to w.
func (x *Exporter) Export(ctx context.Context, src Source, w io.Writer) (*Document, error) {
	doc, err := x.Build(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := Write(w, doc, x.format); err != nil {
		return nil, err
	}
	return doc, nil
}

// Write encodes doc to w.
func Write(w io.Writer, doc any, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	}
}
