package metrics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// WritePrometheus writes samples in the Prometheus text exposition format.
// Samples sharing a name are written under one HELP/TYPE header, in the
// order the names first appear.
func WritePrometheus(w io.Writer, samples []Metric) error {
	bw := bufio.NewWriter(w)

	var names []string
	byName := make(map[string][]Metric)
	for _, m := range samples {
		if _, ok := byName[m.Name]; !ok {
			names = append(names, m.Name)
		}
		byName[m.Name] = append(byName[m.Name], m)
	}

	for i, name := range names {
		group := byName[name]
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "# HELP %s %s\n", name, group[0].Help)
		fmt.Fprintf(bw, "# TYPE %s %s\n", name, group[0].Type)
		for _, m := range group {
			fmt.Fprintf(bw, "%s%s %s\n", name, formatLabels(m.Labels), strconv.FormatFloat(m.Value, 'g', -1, 64))
		}
	}
	return bw.Flush()
}

// WriteFile writes samples to path through a temp file and a rename, so a
// node_exporter textfile collector never reads a partial file.
func WriteFile(path string, samples []Metric) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".hitenv-metrics-*")
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WritePrometheus(tmp, samples); err != nil {
		tmp.Close()
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=\"%s\"", k, sanitizeLabel(labels[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// sanitizeLabel makes a string safe for use as a Prometheus label value
func sanitizeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
