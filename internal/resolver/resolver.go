// Package resolver dereferences "$ref" pointers against a document's
// definitions table.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"api-contract-tester/internal/types"
)

// ErrUnresolved is matched by every ResolutionError via errors.Is.
var ErrUnresolved = errors.New("unresolved schema reference")

// ResolutionError reports a reference that does not resolve to a schema.
// It is a document defect and aborts the run.
type ResolutionError struct {
	Ref    string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %s", e.Ref, e.Reason)
}

// Is reports whether target is ErrUnresolved.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrUnresolved
}

// Accepted pointer prefixes, after the leading '#' and '/' are stripped.
var definitionPrefixes = []string{"definitions/", "components/schemas/"}

// ParsePointer validates ref and returns the definition name it points to.
// Only local pointers into the definitions table are accepted:
// "#/definitions/<name>" and the OpenAPI 3 form "#/components/schemas/<name>".
func ParsePointer(ref string) (string, error) {
	trimmed := strings.TrimLeft(ref, "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	for _, prefix := range definitionPrefixes {
		name, ok := strings.CutPrefix(trimmed, prefix)
		if !ok {
			continue
		}
		if name == "" || strings.Contains(name, "/") {
			return "", &ResolutionError{Ref: ref, Reason: "pointer must name exactly one definition"}
		}
		return unescape(name), nil
	}
	return "", &ResolutionError{Ref: ref, Reason: "only #/definitions/<name> pointers are supported"}
}

// unescape decodes JSON Pointer tokens: ~1 is '/', ~0 is '~'.
func unescape(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}

// Resolver resolves references against one document. It only reads the
// document and is safe for concurrent use.
type Resolver struct {
	definitions map[string]*types.Schema
}

// New creates a resolver over doc's definitions.
func New(doc *types.Document) *Resolver {
	defs := doc.Definitions
	if defs == nil {
		defs = map[string]*types.Schema{}
	}
	return &Resolver{definitions: defs}
}

// Lookup returns the definition a pointer names, following chains of
// references between definitions.
func (r *Resolver) Lookup(ref string) (*types.Schema, error) {
	seen := make(map[string]bool)
	for {
		name, err := ParsePointer(ref)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, &ResolutionError{Ref: ref, Reason: "circular reference"}
		}
		seen[name] = true

		schema, ok := r.definitions[name]
		if !ok || schema == nil {
			return nil, &ResolutionError{Ref: ref, Reason: fmt.Sprintf("definition %q not found", name)}
		}
		if !schema.IsRef() {
			return schema, nil
		}
		ref = schema.Ref
	}
}

// Resolve returns the concrete schema for s. A reference is looked up in the
// definitions table; when the result is an array whose items are themselves a
// reference, the items are resolved too (one level only). The returned schema
// may be a shallow copy and must not be mutated.
func (r *Resolver) Resolve(s *types.Schema) (*types.Schema, error) {
	if s == nil {
		return nil, nil
	}
	resolved := s
	if s.IsRef() {
		var err error
		resolved, err = r.Lookup(s.Ref)
		if err != nil {
			return nil, err
		}
	}
	if resolved.Type == types.TypeArray && resolved.Items.IsRef() {
		items, err := r.Lookup(resolved.Items.Ref)
		if err != nil {
			return nil, err
		}
		unwrapped := *resolved
		unwrapped.Items = items
		resolved = &unwrapped
	}
	return resolved, nil
}

// CheckDocument verifies that every reference reachable from the document's
// definitions, parameters, responses and response headers resolves. It returns the first
// failure in a deterministic order.
func (r *Resolver) CheckDocument(doc *types.Document) error {
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.checkSchema(r.definitions[name], make(map[*types.Schema]bool)); err != nil {
			return fmt.Errorf("definitions/%s: %w", name, err)
		}
	}

	for _, op := range doc.Operations() {
		for _, p := range op.Parameters {
			if err := r.checkSchema(p.Schema, make(map[*types.Schema]bool)); err != nil {
				return fmt.Errorf("%s parameter %q: %w", op.Key(), p.Name, err)
			}
		}
		codes := make([]string, 0, len(op.Responses))
		for code := range op.Responses {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			resp := op.Responses[code]
			if err := r.checkSchema(resp.Schema, make(map[*types.Schema]bool)); err != nil {
				return fmt.Errorf("%s response %s: %w", op.Key(), code, err)
			}
			headers := make([]string, 0, len(resp.Headers))
			for name := range resp.Headers {
				headers = append(headers, name)
			}
			sort.Strings(headers)
			for _, name := range headers {
				if err := r.checkSchema(resp.Headers[name].Items, make(map[*types.Schema]bool)); err != nil {
					return fmt.Errorf("%s response %s header %q: %w", op.Key(), code, name, err)
				}
			}
		}
	}
	return nil
}

func (r *Resolver) checkSchema(s *types.Schema, visited map[*types.Schema]bool) error {
	if s == nil || visited[s] {
		return nil
	}
	visited[s] = true
	if s.IsRef() {
		_, err := r.Lookup(s.Ref)
		return err
	}
	if err := r.checkSchema(s.Items, visited); err != nil {
		return err
	}
	props := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		props = append(props, name)
	}
	sort.Strings(props)
	for _, name := range props {
		if err := r.checkSchema(s.Properties[name], visited); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}
	return nil
}
