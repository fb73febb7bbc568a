// Package review implements the review/decision contract: a pure prompt
// plan derived from the flagged payload, a submission builder that coerces
// the user's raw corrections, and an interactive terminal form.
package review

import "github.com/wu-transcripts/uploader/internal/models"

// CoursePrompt describes the correction controls to render for one course.
// Exactly the fields the backend flagged get a control; nothing else.
type CoursePrompt struct {
	Key    models.DecisionKey
	Course models.FlaggedCourse

	NeedsCategory bool
	NeedsCredits  bool
	NeedsPassed   bool
}

// GroupPlan is the rendering plan for one degree/major group.
type GroupPlan struct {
	Group   models.FlaggedDegreeGroup
	Prompts []CoursePrompt
}

// BuildPlan converts the flagged payload into a rendering plan. Courses with
// no ambiguous fields are skipped entirely.
func BuildPlan(fileName string, groups []models.FlaggedDegreeGroup) []GroupPlan {
	var plans []GroupPlan
	for _, g := range groups {
		plan := GroupPlan{Group: g}
		for i, course := range g.Courses {
			if !course.NeedsReview() {
				continue
			}
			idx := course.CourseIndex
			if idx == 0 {
				idx = i
			}
			plan.Prompts = append(plan.Prompts, CoursePrompt{
				Key: models.DecisionKey{
					FileName:    fileName,
					Degree:      g.Degree,
					Major:       g.Major,
					CourseName:  course.CourseName,
					CourseIndex: idx,
				},
				Course:        course,
				NeedsCategory: course.NeedsCategory(),
				NeedsCredits:  course.NeedsCredits(),
				NeedsPassed:   course.NeedsPassed(),
			})
		}
		if len(plan.Prompts) > 0 {
			plans = append(plans, plan)
		}
	}
	return plans
}
