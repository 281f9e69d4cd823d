package reporter

import (
	"time"

	"github.com/google/uuid"
)

// Report represents the assertions of one run
type Report struct {
	ID         string        `json:"id"`
	Target     string        `json:"target,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Assertions []Assertion   `json:"assertions,omitempty"`
	Groups     []*Group      `json:"groups,omitempty"`
}

// Group represents a named set of assertions, such as one operation
type Group struct {
	Name       string      `json:"name"`
	Passed     int         `json:"passed"`
	Failed     int         `json:"failed"`
	Assertions []Assertion `json:"assertions,omitempty"`
	Groups     []*Group    `json:"groups,omitempty"`
}

// Assertion represents one checked fact
type Assertion struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Recorder builds a Report from the assertion stream.
type Recorder struct {
	report *Report
	stack  []*Group
	now    func() time.Time
}

// NewRecorder starts recording a run against target.
func NewRecorder(target string) *Recorder {
	r := &Recorder{now: time.Now}
	r.report = &Report{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: r.now(),
	}
	return r
}

// BeginGroup implements Reporter.
func (r *Recorder) BeginGroup(name string) {
	g := &Group{Name: name}
	if parent := r.current(); parent != nil {
		parent.Groups = append(parent.Groups, g)
	} else {
		r.report.Groups = append(r.report.Groups, g)
	}
	r.stack = append(r.stack, g)
}

// ReportAssertion implements Reporter.
func (r *Recorder) ReportAssertion(name string, passed bool, detail string) {
	a := Assertion{Name: name, Passed: passed, Detail: detail}
	if g := r.current(); g != nil {
		g.Assertions = append(g.Assertions, a)
	} else {
		r.report.Assertions = append(r.report.Assertions, a)
	}

	if passed {
		r.report.Passed++
	} else {
		r.report.Failed++
	}
	for _, g := range r.stack {
		if passed {
			g.Passed++
		} else {
			g.Failed++
		}
	}
}

// EndGroup implements Reporter.
func (r *Recorder) EndGroup() {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// Report stamps the finish time and returns the recorded report.
func (r *Recorder) Report() *Report {
	r.report.FinishedAt = r.now()
	r.report.Duration = r.report.FinishedAt.Sub(r.report.StartedAt)
	return r.report
}

func (r *Recorder) current() *Group {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}
