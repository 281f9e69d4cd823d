// Package testdata loads known-good parameter values and per-operation
// overrides, and generates starter files for them.
package testdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"api-contract-tester/internal/types"

	"gopkg.in/yaml.v3"
)

// Params represents the params file: shared parameter values plus
// overrides keyed by "METHOD /path".
type Params struct {
	Params    types.ValidParamTable     `json:"params" yaml:"params"`
	Endpoints map[string]types.Override `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
}

// Loader handles loading params from a JSON or YAML file
type Loader struct {
	path string
}

// NewLoader creates a new params loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the params file. The format follows the extension: .yaml and
// .yml are YAML, anything else JSON. A missing file returns an error
// matching fs.ErrNotExist.
func (l *Loader) Load() (*Params, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}

	var params Params
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &params)
	default:
		err = json.Unmarshal(data, &params)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse params file %s: %w", l.path, err)
	}
	params.normalize()
	return &params, nil
}

func (p *Params) normalize() {
	if p.Params == nil {
		p.Params = types.ValidParamTable{}
	}
	if p.Endpoints == nil {
		p.Endpoints = map[string]types.Override{}
	}
	normalized := make(map[string]types.Override, len(p.Endpoints))
	for key, o := range p.Endpoints {
		method, path, ok := strings.Cut(strings.TrimSpace(key), " ")
		if !ok {
			normalized[key] = o
			continue
		}
		normalized[types.OperationKey(method, strings.TrimSpace(path))] = o
	}
	p.Endpoints = normalized
}

// Fill adds values from extra for names the file does not already define.
func (p *Params) Fill(extra types.ValidParamTable) {
	if p.Params == nil {
		p.Params = types.ValidParamTable{}
	}
	for name, v := range extra {
		if _, ok := p.Params[name]; !ok {
			p.Params[name] = v
		}
	}
}
