package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wu-transcripts/uploader/internal/models"
)

func sampleGroups() []models.FlaggedDegreeGroup {
	return []models.FlaggedDegreeGroup{
		{
			FileName: "john.pdf",
			Degree:   "Bachelor of Science",
			Major:    "Mathematics",
			Courses: []models.FlaggedCourse{
				{CourseName: "Advanced Calculus", CourseIndex: 0, SuggestedCategory: strp("")},
				{CourseName: "Linear Algebra", CourseIndex: 1, SuggestedCategory: strp("Mathematics"), CreditsEarned: f64p(3)},
			},
		},
	}
}

func keyFor(course string, idx int) models.DecisionKey {
	return models.DecisionKey{
		FileName:    "john.pdf",
		Degree:      "Bachelor of Science",
		Major:       "Mathematics",
		CourseName:  course,
		CourseIndex: idx,
	}
}

func TestBuildSubmissionCoercesValues(t *testing.T) {
	decisions := make(models.DecisionMap)
	decisions.Set(keyFor("Advanced Calculus", 0), models.Decision{
		CorrectedCategory: "Mathematics",
		CorrectedCredits:  "3.5",
		CorrectedPassed:   "true",
	})

	out, err := BuildSubmission("john.pdf", sampleGroups(), decisions)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Courses, 1)

	course := out[0].Courses[0]
	assert.Equal(t, "Advanced Calculus", course.CourseName)
	require.NotNil(t, course.SuggestedCategory)
	assert.Equal(t, "Mathematics", *course.SuggestedCategory)
	require.NotNil(t, course.CreditsEarned)
	assert.Equal(t, 3.5, *course.CreditsEarned)
	require.NotNil(t, course.IsPassed)
	assert.True(t, *course.IsPassed)
}

func TestBuildSubmissionBlankFieldsStayAbsent(t *testing.T) {
	decisions := make(models.DecisionMap)
	// Only the category was corrected; credits and pass/fail were left blank
	// and must not surface as 0 or false.
	decisions.Set(keyFor("Linear Algebra", 1), models.Decision{CorrectedCategory: "Physics"})

	out, err := BuildSubmission("john.pdf", sampleGroups(), decisions)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Courses, 1)

	course := out[0].Courses[0]
	assert.Nil(t, course.CreditsEarned)
	assert.Nil(t, course.IsPassed)
}

func TestBuildSubmissionEmptyDecisionsYieldEmptyList(t *testing.T) {
	out, err := BuildSubmission("john.pdf", sampleGroups(), make(models.DecisionMap))
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestBuildSubmissionSkipsUntouchedCourses(t *testing.T) {
	decisions := make(models.DecisionMap)
	decisions.Set(keyFor("Advanced Calculus", 0), models.Decision{CorrectedCategory: "Mathematics"})

	out, err := BuildSubmission("john.pdf", sampleGroups(), decisions)
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Linear Algebra had no decision and is left out of the payload.
	require.Len(t, out[0].Courses, 1)
	assert.Equal(t, "Advanced Calculus", out[0].Courses[0].CourseName)
}

func TestBuildSubmissionRejectsBadCoercions(t *testing.T) {
	t.Run("non-numeric credits", func(t *testing.T) {
		decisions := make(models.DecisionMap)
		decisions.Set(keyFor("Advanced Calculus", 0), models.Decision{CorrectedCredits: "three"})
		_, err := BuildSubmission("john.pdf", sampleGroups(), decisions)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Advanced Calculus")
	})

	t.Run("non-boolean pass flag", func(t *testing.T) {
		decisions := make(models.DecisionMap)
		decisions.Set(keyFor("Advanced Calculus", 0), models.Decision{CorrectedPassed: "perhaps"})
		_, err := BuildSubmission("john.pdf", sampleGroups(), decisions)
		require.Error(t, err)
	})
}

func TestBuildSubmissionGroupsStampedWithFileName(t *testing.T) {
	decisions := make(models.DecisionMap)
	decisions.Set(keyFor("Advanced Calculus", 0), models.Decision{CorrectedCategory: "Mathematics"})

	groups := sampleGroups()
	groups[0].FileName = "stale-name.pdf"

	out, err := BuildSubmission("john.pdf", groups, decisions)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "john.pdf", out[0].FileName)
}
