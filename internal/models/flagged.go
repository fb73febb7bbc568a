package models

// FlaggedDegreeGroup is one degree/major block of courses the backend could
// not classify with confidence. Produced by the backend, consumed read-only
// by the review form.
type FlaggedDegreeGroup struct {
	FileName             string          `json:"file_name"`
	Degree               string          `json:"degree"`
	Major                string          `json:"major"`
	OverallCreditsEarned *float64        `json:"overall_credits_earned,omitempty"`
	Courses              []FlaggedCourse `json:"courses"`
}

// FlaggedCourse is a single course needing human review. Each optional
// field's presence marks the classification that was ambiguous and therefore
// which correction control the review form renders:
//
//   - SuggestedCategory non-nil: the category needs review (an empty string
//     means the backend had no usable guess at all).
//   - CreditsEarned non-nil: the credit amount needs review.
//   - Grade or IsPassed non-nil: the pass/fail outcome needs review.
type FlaggedCourse struct {
	CourseName        string   `json:"course_name"`
	CourseIndex       int      `json:"course_index"`
	SuggestedCategory *string  `json:"suggested_category,omitempty"`
	CreditsEarned     *float64 `json:"credits_earned,omitempty"`
	Grade             *string  `json:"grade,omitempty"`
	IsPassed          *bool    `json:"is_passed,omitempty"`
}

// NeedsCategory reports whether the category control should be rendered.
func (c FlaggedCourse) NeedsCategory() bool { return c.SuggestedCategory != nil }

// NeedsCredits reports whether the credit-amount control should be rendered.
func (c FlaggedCourse) NeedsCredits() bool { return c.CreditsEarned != nil }

// NeedsPassed reports whether the pass/fail control should be rendered.
func (c FlaggedCourse) NeedsPassed() bool { return c.Grade != nil || c.IsPassed != nil }

// NeedsReview reports whether any correction control applies to the course.
func (c FlaggedCourse) NeedsReview() bool {
	return c.NeedsCategory() || c.NeedsCredits() || c.NeedsPassed()
}
