// Package planner derives one concrete request per documented operation.
package planner

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"api-contract-tester/internal/types"
)

// ErrMissingParam is matched by a PlanError caused by a missing parameter value.
var ErrMissingParam = errors.New("missing parameter value")

// PlanError reports that no request could be derived for one operation.
type PlanError struct {
	Operation string
	Reason    string
	Missing   []string
}

func (e *PlanError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("cannot plan %s: no value for required parameter(s) %s", e.Operation, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("cannot plan %s: %s", e.Operation, e.Reason)
}

// Is reports whether target is ErrMissingParam and values were missing.
func (e *PlanError) Is(target error) bool {
	return target == ErrMissingParam && len(e.Missing) > 0
}

// Planned pairs an operation with its request, or with the reason planning failed.
type Planned struct {
	Operation *types.Operation
	Request   *types.RequestDescriptor
	Err       error
}

// Planner turns operations into request descriptors. It is pure: it never
// touches the network and never mutates the document.
type Planner struct {
	Params    types.ValidParamTable
	Overrides map[string]types.Override
	// Methods lists the exercised HTTP methods. Empty means GET only.
	Methods []string
	// Skip lists "METHOD /path" keys excluded from testing.
	Skip []string
}

// Plan derives a request for every selected operation in doc, in document order.
// Skipped operations and unselected methods are omitted.
func (p *Planner) Plan(doc *types.Document) []Planned {
	var planned []Planned
	for _, op := range doc.Operations() {
		if !p.Selected(op) {
			continue
		}
		req, err := p.PlanOperation(doc.BasePath, op)
		planned = append(planned, Planned{Operation: op, Request: req, Err: err})
	}
	return planned
}

// Selected reports whether op should be exercised.
func (p *Planner) Selected(op *types.Operation) bool {
	if op.SkipTest {
		return false
	}
	key := op.Key()
	for _, s := range p.Skip {
		if strings.EqualFold(strings.TrimSpace(s), key) {
			return false
		}
	}
	methods := p.Methods
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	for _, m := range methods {
		if strings.EqualFold(m, op.Method) {
			return true
		}
	}
	return false
}

// PlanOperation builds the request for a single operation.
func (p *Planner) PlanOperation(basePath string, op *types.Operation) (*types.RequestDescriptor, error) {
	key := op.Key()
	override := p.Overrides[key]

	status, err := ExpectedStatus(op, override)
	if err != nil {
		return nil, &PlanError{Operation: key, Reason: err.Error()}
	}

	req := &types.RequestDescriptor{
		Operation:      key,
		Method:         op.Method,
		Query:          url.Values{},
		Headers:        map[string]string{},
		Body:           override.Body,
		ExpectedStatus: status,
	}

	path := op.Path
	var missing []string
	for _, param := range op.Parameters {
		switch param.In {
		case types.InPath:
			// Path parameters are always required, whatever the declaration says.
			value, ok := p.lookup(param.Name, override.PathParams)
			if !ok {
				missing = append(missing, param.Name)
				continue
			}
			path = strings.ReplaceAll(path, "{"+param.Name+"}", url.PathEscape(value))
		case types.InQuery:
			if !param.Required {
				continue
			}
			value, ok := p.lookup(param.Name, override.QueryParams)
			if !ok {
				missing = append(missing, param.Name)
				continue
			}
			req.Query.Set(param.Name, value)
		case types.InHeader:
			if !param.Required {
				continue
			}
			if _, ok := lookupHeader(override.Headers, param.Name); ok {
				continue
			}
			value, ok := p.Params.Lookup(param.Name)
			if !ok {
				missing = append(missing, param.Name)
				continue
			}
			req.Headers[param.Name] = value
		case types.InBody:
			if param.Required && override.Body == nil {
				return nil, &PlanError{Operation: key, Reason: "request body is required; provide one in the endpoint overrides"}
			}
		}
	}
	if len(missing) > 0 {
		return nil, &PlanError{Operation: key, Missing: missing}
	}

	// Explicit override values go out even for optional parameters.
	for name, v := range override.QueryParams {
		req.Query.Set(name, types.FormatValue(v))
	}
	for name, v := range override.Headers {
		req.Headers[name] = v
	}

	req.Path = basePath + path
	return req, nil
}

// lookup prefers an explicit override value over the shared table.
func (p *Planner) lookup(name string, override map[string]any) (string, bool) {
	if v, ok := override[name]; ok && v != nil {
		return types.FormatValue(v), true
	}
	return p.Params.Lookup(name)
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// ExpectedStatus picks the status code a request must produce: the override
// when set, else 200 when declared, else the lowest declared 2xx code.
func ExpectedStatus(op *types.Operation, override types.Override) (int, error) {
	if override.Status > 0 {
		return override.Status, nil
	}
	if _, ok := op.Responses["200"]; ok {
		return http.StatusOK, nil
	}
	var codes []int
	for code := range op.Responses {
		n, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		if n >= 200 && n < 300 {
			codes = append(codes, n)
		}
	}
	if len(codes) == 0 {
		return 0, errors.New("no 2xx response declared")
	}
	sort.Ints(codes)
	return codes[0], nil
}
