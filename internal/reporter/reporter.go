// Package reporter renders the stream of named assertions a run produces.
package reporter

// Reporter consumes assertions grouped by operation. Groups nest: every
// BeginGroup is matched by one EndGroup. Implementations need not be safe
// for concurrent use; the engine reports from a single goroutine.
type Reporter interface {
	BeginGroup(name string)
	ReportAssertion(name string, passed bool, detail string)
	EndGroup()
}

// Multi fans every call out to several reporters in order.
type Multi []Reporter

// BeginGroup implements Reporter.
func (m Multi) BeginGroup(name string) {
	for _, r := range m {
		r.BeginGroup(name)
	}
}

// ReportAssertion implements Reporter.
func (m Multi) ReportAssertion(name string, passed bool, detail string) {
	for _, r := range m {
		r.ReportAssertion(name, passed, detail)
	}
}

// EndGroup implements Reporter.
func (m Multi) EndGroup() {
	for _, r := range m {
		r.EndGroup()
	}
}
