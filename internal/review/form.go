package review

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/wu-transcripts/uploader/internal/models"
)

// TerminalReviewer renders the review form in the terminal and writes the
// user's corrections into the decision map.
type TerminalReviewer struct {
	// Categories populate the category selector. May be empty, in which case
	// the category becomes a free-form input.
	Categories []string
}

// NewTerminalReviewer creates a reviewer offering the given category list.
func NewTerminalReviewer(categories []string) *TerminalReviewer {
	return &TerminalReviewer{Categories: categories}
}

// binding ties one prompt's form values to its decision key.
type binding struct {
	key      models.DecisionKey
	category *string
	credits  *string
	passed   *string
}

// Review builds one form group per flagged degree group, runs the form, and
// buffers every non-blank correction. Submission of the form is the single
// explicit user action that hands the decisions back.
func (r *TerminalReviewer) Review(ctx context.Context, groups []models.FlaggedDegreeGroup, decisions models.DecisionMap) error {
	if len(groups) == 0 {
		return nil
	}
	fileName := groups[0].FileName
	plans := BuildPlan(fileName, groups)
	if len(plans) == 0 {
		return nil
	}

	var bindings []binding
	var formGroups []*huh.Group

	for _, plan := range plans {
		level := models.CategorizeDegree(plan.Group.Degree)
		fields := []huh.Field{
			huh.NewNote().
				Title(fmt.Sprintf("%s / %s", plan.Group.Degree, plan.Group.Major)).
				Description(fmt.Sprintf("%d course(s) need review in %s", len(plan.Prompts), fileName)),
		}

		for _, p := range plan.Prompts {
			b := binding{key: p.Key}

			if p.NeedsCategory {
				v := new(string)
				fields = append(fields, r.categoryField(p, v))
				b.category = v
			}
			if p.NeedsCredits {
				v := new(string)
				fields = append(fields, creditsField(p, v))
				b.credits = v
			}
			if p.NeedsPassed {
				v := new(string)
				*v = defaultPassed(p.Course, level)
				fields = append(fields, passedField(p, v))
				b.passed = v
			}
			bindings = append(bindings, b)
		}
		formGroups = append(formGroups, huh.NewGroup(fields...))
	}

	form := huh.NewForm(formGroups...).WithShowHelp(false)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	for _, b := range bindings {
		var d models.Decision
		if b.category != nil {
			d.CorrectedCategory = strings.TrimSpace(*b.category)
		}
		if b.credits != nil {
			d.CorrectedCredits = strings.TrimSpace(*b.credits)
		}
		if b.passed != nil {
			d.CorrectedPassed = strings.TrimSpace(*b.passed)
		}
		decisions.Set(b.key, d)
	}
	return nil
}

func (r *TerminalReviewer) categoryField(p CoursePrompt, value *string) huh.Field {
	title := fmt.Sprintf("Category for %q", p.Course.CourseName)
	if suggestion := p.Course.SuggestedCategory; suggestion != nil && *suggestion != "" {
		title += fmt.Sprintf(" (suggested: %s)", *suggestion)
	}
	if len(r.Categories) == 0 {
		return huh.NewInput().
			Title(title).
			Placeholder("category name").
			Value(value)
	}
	opts := []huh.Option[string]{huh.NewOption("(leave unchanged)", "")}
	for _, c := range r.Categories {
		opts = append(opts, huh.NewOption(c, c))
	}
	return huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(value)
}

func creditsField(p CoursePrompt, value *string) huh.Field {
	placeholder := "3.0"
	if p.Course.CreditsEarned != nil {
		placeholder = strconv.FormatFloat(*p.Course.CreditsEarned, 'f', -1, 64)
	}
	return huh.NewInput().
		Title(fmt.Sprintf("Credits earned for %q (blank to keep)", p.Course.CourseName)).
		Placeholder(placeholder).
		Value(value).
		Validate(validateOptionalNumber)
}

func passedField(p CoursePrompt, value *string) huh.Field {
	title := fmt.Sprintf("Did the educator pass %q?", p.Course.CourseName)
	if p.Course.Grade != nil {
		title += fmt.Sprintf(" (grade: %s)", *p.Course.Grade)
	}
	return huh.NewSelect[string]().
		Title(title).
		Options(
			huh.NewOption("(leave unchanged)", ""),
			huh.NewOption("passed", "true"),
			huh.NewOption("not passed", "false"),
		).
		Value(value)
}

// defaultPassed preselects the pass/fail control from the backend's
// suggestion, falling back to the grade against the degree level's passing
// threshold.
func defaultPassed(c models.FlaggedCourse, level models.DegreeLevel) string {
	if c.IsPassed != nil {
		return strconv.FormatBool(*c.IsPassed)
	}
	if c.Grade != nil && models.GradeRank(*c.Grade) > 0 {
		return strconv.FormatBool(models.IsPassingGrade(*c.Grade, level))
	}
	return ""
}

func validateOptionalNumber(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return fmt.Errorf("enter a number or leave blank")
	}
	return nil
}
