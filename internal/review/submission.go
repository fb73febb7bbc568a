package review

import (
	"fmt"

	"github.com/wu-transcripts/uploader/internal/models"
)

// BuildSubmission turns the decision map into the payload for
// POST /submit_user_decisions: one group per flagged group, containing only
// the courses the user actually corrected. Numeric-looking corrections are
// coerced to numbers and boolean-looking ones to booleans; blank fields stay
// absent rather than becoming zero values. A file with no buffered decisions
// yields an empty decisions list, never an error.
func BuildSubmission(fileName string, groups []models.FlaggedDegreeGroup, decisions models.DecisionMap) ([]models.FlaggedDegreeGroup, error) {
	out := []models.FlaggedDegreeGroup{}
	for _, g := range groups {
		corrected := models.FlaggedDegreeGroup{
			FileName:             fileName,
			Degree:               g.Degree,
			Major:                g.Major,
			OverallCreditsEarned: g.OverallCreditsEarned,
			Courses:              []models.FlaggedCourse{},
		}
		for i, course := range g.Courses {
			idx := course.CourseIndex
			if idx == 0 {
				idx = i
			}
			key := models.DecisionKey{
				FileName:    fileName,
				Degree:      g.Degree,
				Major:       g.Major,
				CourseName:  course.CourseName,
				CourseIndex: idx,
			}
			d, ok := decisions.Get(key)
			if !ok {
				continue
			}

			entry := models.FlaggedCourse{
				CourseName:  course.CourseName,
				CourseIndex: idx,
			}
			if d.CorrectedCategory != "" {
				cat := d.CorrectedCategory
				entry.SuggestedCategory = &cat
			}
			credits, err := d.CreditsValue()
			if err != nil {
				return nil, fmt.Errorf("course %q: %w", course.CourseName, err)
			}
			entry.CreditsEarned = credits

			passed, err := d.PassedValue()
			if err != nil {
				return nil, fmt.Errorf("course %q: %w", course.CourseName, err)
			}
			entry.IsPassed = passed

			corrected.Courses = append(corrected.Courses, entry)
		}
		if len(corrected.Courses) > 0 {
			out = append(out, corrected)
		}
	}
	return out, nil
}
