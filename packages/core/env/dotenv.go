package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DotEnvEntry is one KEY=value line, kept in file order.
type DotEnvEntry struct {
	Key   string
	Value string
}

// LoadDotEnv parses a .env file and returns its entries in file order.
// Supports: KEY=value, KEY="quoted value", KEY='single quoted', export KEY=value,
// # comments. Later duplicates replace earlier ones in place.
func LoadDotEnv(path string) ([]DotEnvEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	entries, err := ParseDotEnv(file)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return entries, nil
}

// ParseDotEnv parses .env content from r.
func ParseDotEnv(r io.Reader) ([]DotEnvEntry, error) {
	var entries []DotEnvEntry
	index := make(map[string]int)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		if i, ok := index[key]; ok {
			entries[i].Value = value
			continue
		}
		index[key] = len(entries)
		entries = append(entries, DotEnvEntry{Key: key, Value: value})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// FromDotEnv builds a new environment holding one single-value variable per
// entry of the .env file at path.
func FromDotEnv(path, name string, scope Scope) (*Environment, error) {
	entries, err := LoadDotEnv(path)
	if err != nil {
		return nil, err
	}
	e := NewEnvironment(name, scope)
	for _, entry := range entries {
		e.Variables = append(e.Variables, NewVariable(entry.Key, entry.Value))
	}
	return e, nil
}
