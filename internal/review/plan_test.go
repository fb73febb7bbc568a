package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu-transcripts/uploader/internal/models"
)

func strp(s string) *string   { return &s }
func f64p(f float64) *float64 { return &f }
func boolp(v bool) *bool      { return &v }

func TestBuildPlanControlSelection(t *testing.T) {
	groups := []models.FlaggedDegreeGroup{
		{
			Degree: "Bachelor of Science",
			Major:  "Mathematics",
			Courses: []models.FlaggedCourse{
				// Category only, with no usable guess.
				{CourseName: "Advanced Calculus", CourseIndex: 0, SuggestedCategory: strp("")},
				// Everything flagged.
				{CourseName: "Linear Algebra", CourseIndex: 1, SuggestedCategory: strp("Mathematics"), CreditsEarned: f64p(3), Grade: strp("B+")},
				// Nothing flagged; must not produce a prompt.
				{CourseName: "Intro Seminar", CourseIndex: 2},
				// Pass/fail only via explicit flag.
				{CourseName: "Thesis", CourseIndex: 3, IsPassed: boolp(false)},
			},
		},
	}

	plans := BuildPlan("john.pdf", groups)
	require.Len(t, plans, 1)
	prompts := plans[0].Prompts
	require.Len(t, prompts, 3)

	calc := prompts[0]
	assert.True(t, calc.NeedsCategory)
	assert.False(t, calc.NeedsCredits)
	assert.False(t, calc.NeedsPassed)

	algebra := prompts[1]
	assert.True(t, algebra.NeedsCategory)
	assert.True(t, algebra.NeedsCredits)
	assert.True(t, algebra.NeedsPassed)

	thesis := prompts[2]
	assert.False(t, thesis.NeedsCategory)
	assert.False(t, thesis.NeedsCredits)
	assert.True(t, thesis.NeedsPassed)

	// Keys carry the full identity of the course within the file.
	assert.Equal(t, models.DecisionKey{
		FileName:    "john.pdf",
		Degree:      "Bachelor of Science",
		Major:       "Mathematics",
		CourseName:  "Thesis",
		CourseIndex: 3,
	}, thesis.Key)
}

func TestBuildPlanSkipsGroupsWithNothingToReview(t *testing.T) {
	groups := []models.FlaggedDegreeGroup{
		{
			Degree:  "MBA",
			Major:   "Finance",
			Courses: []models.FlaggedCourse{{CourseName: "Accounting", CourseIndex: 0}},
		},
	}
	assert.Empty(t, BuildPlan("john.pdf", groups))
}

func TestBuildPlanFallsBackToSlicePosition(t *testing.T) {
	// Some payloads omit course_index entirely; repeated names must still get
	// distinct keys.
	groups := []models.FlaggedDegreeGroup{
		{
			Degree: "BS",
			Major:  "Music",
			Courses: []models.FlaggedCourse{
				{CourseName: "Ensemble", SuggestedCategory: strp("")},
				{CourseName: "Ensemble", SuggestedCategory: strp("")},
			},
		},
	}

	plans := BuildPlan("john.pdf", groups)
	require.Len(t, plans, 1)
	require.Len(t, plans[0].Prompts, 2)
	assert.NotEqual(t, plans[0].Prompts[0].Key, plans[0].Prompts[1].Key)
}

func TestDefaultPassed(t *testing.T) {
	tests := []struct {
		name   string
		course models.FlaggedCourse
		level  models.DegreeLevel
		want   string
	}{
		{name: "explicit flag wins", course: models.FlaggedCourse{IsPassed: boolp(false), Grade: strp("A")}, level: models.LevelBachelor, want: "false"},
		{name: "passing grade", course: models.FlaggedCourse{Grade: strp("B")}, level: models.LevelMaster, want: "true"},
		{name: "failing grade for level", course: models.FlaggedCourse{Grade: strp("D")}, level: models.LevelMaster, want: "false"},
		{name: "same grade passes lower level", course: models.FlaggedCourse{Grade: strp("D")}, level: models.LevelBachelor, want: "true"},
		{name: "unknown grade leaves it open", course: models.FlaggedCourse{Grade: strp("E")}, level: models.LevelBachelor, want: ""},
		{name: "nothing known", course: models.FlaggedCourse{}, level: models.LevelBachelor, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, defaultPassed(tt.course, tt.level))
		})
	}
}

func TestValidateOptionalNumber(t *testing.T) {
	assert.NoError(t, validateOptionalNumber(""))
	assert.NoError(t, validateOptionalNumber("  "))
	assert.NoError(t, validateOptionalNumber("3.5"))
	assert.NoError(t, validateOptionalNumber(" 4 "))
	assert.Error(t, validateOptionalNumber("three"))
}
