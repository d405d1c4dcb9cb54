package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

const documentVersion = 1

// Document is the on-disk layout of a workspace file.
type Document struct {
	Version      int                `json:"version" yaml:"version"`
	Environments []*env.Environment `json:"environments" yaml:"environments"`
	Overrides    map[string]string  `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// FileRepository keeps the whole workspace in one JSON or YAML file. Every
// write rewrites the file through a temp file and rename.
type FileRepository struct {
	mu          sync.RWMutex
	path        string
	yaml        bool
	doc         Document
	lastWritten []byte
}

// NewFileRepository loads path, or starts empty when the file does not exist.
func NewFileRepository(path string) (*FileRepository, error) {
	ext := strings.ToLower(filepath.Ext(path))
	r := &FileRepository{
		path: path,
		yaml: ext == ".yaml" || ext == ".yml",
		doc:  Document{Version: documentVersion},
	}
	if _, err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRepository) Path() string {
	return r.path
}

// Reload re-reads the file. It reports whether the content differed from
// what this repository last wrote or loaded.
func (r *FileRepository) Reload() (bool, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read workspace file: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if bytes.Equal(data, r.lastWritten) {
		return false, nil
	}
	doc, err := r.unmarshal(data)
	if err != nil {
		return false, err
	}
	r.doc = doc
	r.lastWritten = data
	return true, nil
}

func (r *FileRepository) unmarshal(data []byte) (Document, error) {
	var doc Document
	var err error
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{Version: documentVersion}, nil
	}
	if r.yaml {
		err = yaml.Unmarshal(data, &doc)
	} else {
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Document{}, fmt.Errorf("parse workspace file %s: %w", r.path, err)
	}
	for _, e := range doc.Environments {
		if e.Variables == nil {
			e.Variables = []*env.Variable{}
		}
	}
	return doc, nil
}

func (r *FileRepository) marshal(doc Document) ([]byte, error) {
	if r.yaml {
		return yaml.Marshal(doc)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// commit writes next to disk and swaps it in. r.mu must be held.
func (r *FileRepository) commit(next Document) error {
	data, err := r.marshal(next)
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create workspace directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace workspace file: %w", err)
	}
	r.doc = next
	r.lastWritten = data
	return nil
}

// snapshot returns a copy of the document whose slices can be edited. r.mu
// must be held.
func (r *FileRepository) snapshot() Document {
	next := Document{
		Version:      documentVersion,
		Environments: append([]*env.Environment(nil), r.doc.Environments...),
		Overrides:    make(map[string]string, len(r.doc.Overrides)),
	}
	for k, v := range r.doc.Overrides {
		next.Overrides[k] = v
	}
	return next
}

func (r *FileRepository) indexOf(envID string) int {
	for i, e := range r.doc.Environments {
		if e.ID == envID {
			return i
		}
	}
	return -1
}

func (r *FileRepository) Get(_ context.Context, envID string) (*env.Environment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(envID)
	if i < 0 {
		return nil, notFound(envID)
	}
	return r.doc.Environments[i].Clone(), nil
}

func (r *FileRepository) Put(_ context.Context, e *env.Environment) error {
	if err := validateForPut(e); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.snapshot()
	if i := r.indexOf(e.ID); i >= 0 {
		next.Environments[i] = e.Clone()
	} else {
		next.Environments = append(next.Environments, e.Clone())
	}
	return r.commit(next)
}

func (r *FileRepository) Delete(_ context.Context, envID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(envID)
	if i < 0 {
		return notFound(envID)
	}
	next := r.snapshot()
	next.Environments = append(next.Environments[:i], next.Environments[i+1:]...)
	return r.commit(next)
}

func (r *FileRepository) ListByCollection(_ context.Context, collectionID string) ([]*env.Environment, error) {
	return r.list(func(e *env.Environment) bool { return inCollection(e, collectionID) }), nil
}

func (r *FileRepository) ListGlobal(_ context.Context) ([]*env.Environment, error) {
	return r.list(func(e *env.Environment) bool { return e.Scope.IsGlobal() }), nil
}

func (r *FileRepository) List(_ context.Context) ([]*env.Environment, error) {
	return r.list(func(*env.Environment) bool { return true }), nil
}

func (r *FileRepository) list(keep func(*env.Environment) bool) []*env.Environment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*env.Environment, 0)
	for _, e := range r.doc.Environments {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sortEnvironments(out)
	return out
}

func (r *FileRepository) Overrides(_ context.Context) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.doc.Overrides))
	for k, v := range r.doc.Overrides {
		out[k] = v
	}
	return out, nil
}

func (r *FileRepository) SetOverride(_ context.Context, collectionID, envID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.snapshot()
	if envID == "" {
		delete(next.Overrides, collectionID)
	} else {
		next.Overrides[collectionID] = envID
	}
	return r.commit(next)
}

func (r *FileRepository) Close() error {
	return nil
}
