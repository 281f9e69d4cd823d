// Package executor runs planned requests against the target service.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"
)

// DefaultConcurrency bounds in-flight requests when no limit is configured.
const DefaultConcurrency = 100

// ErrUnexpectedStatus is matched by an ExecutionError caused by a status mismatch.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// ExecutionError records why the exchange for one operation failed.
type ExecutionError struct {
	Operation string
	Status    int
	Expected  int
	Cause     error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s: unexpected status code %d, expected %d", e.Operation, e.Status, e.Expected)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrUnexpectedStatus and the exchange itself succeeded.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrUnexpectedStatus && e.Cause == nil
}

// Coordinator executes requests with bounded concurrency. One failing
// request never stops the others.
type Coordinator struct {
	transport   Transport
	concurrency int
	logger      *logger.Logger
	tracer      trace.Tracer
}

// NewCoordinator creates a coordinator. A concurrency below 1 uses DefaultConcurrency.
func NewCoordinator(transport Transport, concurrency int, log *logger.Logger) *Coordinator {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Coordinator{
		transport:   transport,
		concurrency: concurrency,
		logger:      log,
		tracer:      otel.Tracer("api-contract-tester/executor"),
	}
}

// Run executes every request and returns one result per request in
// completion order. Cancelling ctx stops scheduling; requests not yet
// started are recorded with the context error.
func (c *Coordinator) Run(ctx context.Context, requests []*types.RequestDescriptor) []*types.RequestResult {
	var (
		mu      sync.Mutex
		results = make([]*types.RequestResult, 0, len(requests))
	)
	record := func(r *types.RequestResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			record(&types.RequestResult{
				Request: req,
				Err:     &ExecutionError{Operation: req.Operation, Expected: req.ExpectedStatus, Cause: err},
			})
			continue
		}
		g.Go(func() error {
			record(c.execute(ctx, req))
			return nil
		})
	}
	_ = g.Wait()

	c.logger.Debugf("Executed %d request(s)", len(results))
	return results
}

func (c *Coordinator) execute(ctx context.Context, req *types.RequestDescriptor) *types.RequestResult {
	ctx, span := c.tracer.Start(ctx, "contract.request")
	defer span.End()
	span.SetAttributes(
		semconv.HTTPMethodKey.String(req.Method),
		attribute.String("http.target", req.URL()),
		attribute.String("contract.operation", req.Operation),
	)

	start := time.Now()
	resp, err := c.transport.Execute(ctx, req)
	result := &types.RequestResult{Request: req, Duration: time.Since(start)}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warnf("%s failed: %v", req.Operation, err)
		result.Err = &ExecutionError{Operation: req.Operation, Expected: req.ExpectedStatus, Cause: err}
		return result
	}

	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(resp.Status))
	result.Status = resp.Status
	result.Body = resp.Body
	result.Headers = resp.Headers
	if resp.Status != req.ExpectedStatus {
		span.SetStatus(codes.Error, "unexpected status")
		c.logger.Warnf("%s returned %d, expected %d", req.Operation, resp.Status, req.ExpectedStatus)
		result.Err = &ExecutionError{Operation: req.Operation, Status: resp.Status, Expected: req.ExpectedStatus}
	}
	return result
}
