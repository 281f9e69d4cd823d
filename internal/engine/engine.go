// Package engine wires document loading, planning, execution and validation
// into one contract-test run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"api-contract-tester/internal/executor"
	"api-contract-tester/internal/formats"
	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/planner"
	"api-contract-tester/internal/reporter"
	"api-contract-tester/internal/resolver"
	"api-contract-tester/internal/types"
	"api-contract-tester/internal/validator"
)

// ErrAssertionsFailed is returned by callers when a run completed with failures.
var ErrAssertionsFailed = errors.New("one or more contract assertions failed")

// ErrIncompleteConfig is returned by Run when a required collaborator is missing.
var ErrIncompleteConfig = errors.New("incomplete engine configuration")

// DocumentLoader fetches and decodes the API document.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*types.Document, error)
}

// Config holds the collaborators and settings of a run. Loader and
// Coordinator are required.
type Config struct {
	Loader       DocumentLoader
	DocumentPath string
	Planner      *planner.Planner
	Coordinator  *executor.Coordinator
	Reporter     reporter.Reporter
	// Formats defaults to formats.Default().
	Formats             *formats.Registry
	Validation          validator.Options
	ValidateHeaders     bool
	FailOnMissingParams bool
	Logger              *logger.Logger
}

// Summary counts the assertions of a finished run
type Summary struct {
	Passed     int
	Failed     int
	Operations int
}

// OK reports whether every assertion passed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Engine runs contract tests
type Engine struct {
	cfg Config
}

// New creates an engine. Planner, Reporter and DocumentPath get defaults when unset.
func New(cfg Config) *Engine {
	if cfg.Planner == nil {
		cfg.Planner = &planner.Planner{}
	}
	if cfg.Reporter == nil {
		cfg.Reporter = reporter.Multi{}
	}
	if cfg.Formats == nil {
		cfg.Formats = formats.Default()
	}
	if cfg.DocumentPath == "" {
		cfg.DocumentPath = "/swagger.json"
	}
	return &Engine{cfg: cfg}
}

// counter tallies assertions while forwarding them.
type counter struct {
	reporter.Reporter
	summary *Summary
}

func (c counter) ReportAssertion(name string, passed bool, detail string) {
	if passed {
		c.summary.Passed++
	} else {
		c.summary.Failed++
	}
	c.Reporter.ReportAssertion(name, passed, detail)
}

// Run executes one contract-test run. Document fetch failures, unresolvable
// references and, when configured, missing parameter values abort the run
// with an error; everything else is reported as an assertion.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	rep := counter{Reporter: e.cfg.Reporter, summary: summary}
	log := e.cfg.Logger

	switch {
	case e.cfg.Loader == nil:
		return summary, fmt.Errorf("%w: no document loader", ErrIncompleteConfig)
	case e.cfg.Coordinator == nil:
		return summary, fmt.Errorf("%w: no coordinator", ErrIncompleteConfig)
	}

	doc, err := e.cfg.Loader.Load(ctx, e.cfg.DocumentPath)
	if err != nil {
		rep.ReportAssertion("document is reachable", false, err.Error())
		return summary, err
	}
	rep.ReportAssertion("document is reachable", true, "")
	rep.ReportAssertion("document declares paths", len(doc.Paths) > 0, "")
	rep.ReportAssertion("document declares definitions", len(doc.Definitions) > 0, "")

	res := resolver.New(doc)
	if err := res.CheckDocument(doc); err != nil {
		return summary, fmt.Errorf("invalid API document: %w", err)
	}

	planned := e.cfg.Planner.Plan(doc)
	summary.Operations = len(planned)
	requests := make([]*types.RequestDescriptor, 0, len(planned))
	for _, p := range planned {
		if p.Err != nil {
			if e.cfg.FailOnMissingParams && errors.Is(p.Err, planner.ErrMissingParam) {
				return summary, p.Err
			}
			log.Warnf("%v", p.Err)
			continue
		}
		requests = append(requests, p.Request)
	}
	log.Infof("Planned %d of %d operation(s)", len(requests), len(planned))

	results := make(map[string]*types.RequestResult, len(requests))
	for _, r := range e.cfg.Coordinator.Run(ctx, requests) {
		results[r.Request.Operation] = r
	}

	v := validator.New(res, e.cfg.Formats, e.cfg.Validation)
	for _, p := range planned {
		if err := e.reportOperation(rep, v, p, results[p.Operation.Key()]); err != nil {
			return summary, err
		}
	}

	log.Infof("Run finished: %d passed, %d failed", summary.Passed, summary.Failed)
	return summary, nil
}

func (e *Engine) reportOperation(rep reporter.Reporter, v *validator.Validator, p planner.Planned, result *types.RequestResult) error {
	rep.BeginGroup(p.Operation.Key())
	defer rep.EndGroup()

	if p.Err != nil {
		rep.ReportAssertion("request planned", false, p.Err.Error())
		return nil
	}
	if result == nil {
		rep.ReportAssertion("request executed", false, "no result recorded")
		return nil
	}

	expected := p.Request.ExpectedStatus
	statusName := fmt.Sprintf("responds with status %d", expected)
	if result.Status == 0 {
		rep.ReportAssertion(statusName, false, errorDetail(result.Err))
		return nil
	}
	if result.Status != expected {
		rep.ReportAssertion(statusName, false, fmt.Sprintf("got %d", result.Status))
		return nil
	}
	rep.ReportAssertion(statusName, true, "")

	response, ok := p.Operation.Responses[strconv.Itoa(expected)]
	if !ok {
		response = p.Operation.Responses["default"]
	}

	rep.BeginGroup("body")
	err := e.reportBody(rep, v, response.Schema, result.Body)
	rep.EndGroup()
	if err != nil {
		return err
	}

	if !e.cfg.ValidateHeaders || len(response.Headers) == 0 {
		return nil
	}
	rep.BeginGroup("headers")
	defer rep.EndGroup()
	violations, err := v.ValidateHeaders(result.Headers, response.Headers)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Operation.Key(), err)
	}
	reportViolations(rep, violations)
	return nil
}

func (e *Engine) reportBody(rep reporter.Reporter, v *validator.Validator, schema *types.Schema, body []byte) error {
	if schema == nil {
		rep.ReportAssertion("conformant", true, "")
		return nil
	}
	value, err := validator.DecodeBody(body)
	if err != nil {
		rep.ReportAssertion("decodes as JSON", false, err.Error())
		return nil
	}
	violations, err := v.Validate(value, schema)
	if err != nil {
		return err
	}
	reportViolations(rep, violations)
	return nil
}

// reportViolations emits one failed assertion per violation, or a single
// passing "conformant" assertion when there are none.
func reportViolations(rep reporter.Reporter, violations []types.Violation) {
	if len(violations) == 0 {
		rep.ReportAssertion("conformant", true, "")
		return
	}
	for _, vi := range violations {
		rep.ReportAssertion(fmt.Sprintf("%s: %s", vi.Kind, vi.Path), false, vi.Message)
	}
}

func errorDetail(err error) string {
	if err == nil {
		return "no response"
	}
	return err.Error()
}
