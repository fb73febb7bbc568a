package models

import (
	"fmt"
	"strconv"
	"strings"
)

// DecisionKey is the composite identity of one reviewable course. CourseIndex
// disambiguates repeated course names within the same degree/major group.
type DecisionKey struct {
	FileName    string
	Degree      string
	Major       string
	CourseName  string
	CourseIndex int
}

// Decision holds the raw corrections a user entered for one course. Values
// are kept as entered; coercion to numbers/booleans happens when the
// submission payload is built. An empty string means "left blank" and is
// never coerced to zero or false.
type Decision struct {
	CorrectedCategory string
	CorrectedCredits  string
	CorrectedPassed   string
}

// IsZero reports whether the decision carries no corrections at all.
func (d Decision) IsZero() bool {
	return d.CorrectedCategory == "" && d.CorrectedCredits == "" && d.CorrectedPassed == ""
}

// CreditsValue coerces the corrected credit amount to a number. A blank
// field yields (nil, nil).
func (d Decision) CreditsValue() (*float64, error) {
	raw := strings.TrimSpace(d.CorrectedCredits)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("credits %q is not numeric", d.CorrectedCredits)
	}
	return &v, nil
}

// PassedValue coerces the corrected pass/fail choice to a boolean. A blank
// field yields (nil, nil).
func (d Decision) PassedValue() (*bool, error) {
	raw := strings.TrimSpace(strings.ToLower(d.CorrectedPassed))
	if raw == "" {
		return nil, nil
	}
	switch raw {
	case "true", "pass", "passed", "yes":
		v := true
		return &v, nil
	case "false", "fail", "failed", "no":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("pass/fail %q is not boolean", d.CorrectedPassed)
}

// DecisionMap buffers the user's corrections for the file currently under
// review. It is built incrementally while the form is edited and consumed
// wholesale at submission time.
type DecisionMap map[DecisionKey]Decision

// Set records a correction, dropping the entry when every field is blank so
// untouched courses never produce decisions.
func (m DecisionMap) Set(key DecisionKey, d Decision) {
	if d.IsZero() {
		delete(m, key)
		return
	}
	m[key] = d
}

// Get returns the buffered correction for a course, if any.
func (m DecisionMap) Get(key DecisionKey) (Decision, bool) {
	d, ok := m[key]
	return d, ok
}

// ClearFile drops every entry belonging to the given file.
func (m DecisionMap) ClearFile(fileName string) {
	for k := range m {
		if k.FileName == fileName {
			delete(m, k)
		}
	}
}
