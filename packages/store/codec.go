package store

import (
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/hitenv/packages/core/env"
)

func encodeEnvironment(e *env.Environment) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode environment %s: %w", e.ID, err)
	}
	return data, nil
}

func decodeEnvironment(data []byte) (*env.Environment, error) {
	var e env.Environment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if e.Variables == nil {
		e.Variables = []*env.Variable{}
	}
	return &e, nil
}
