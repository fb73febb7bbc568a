package models

import "strings"

// DegreeLevel buckets a degree name into the levels the passing-grade rules
// are defined for.
type DegreeLevel string

const (
	LevelDoctorate DegreeLevel = "Doctorate"
	LevelMaster    DegreeLevel = "Master"
	LevelBachelor  DegreeLevel = "Bachelor"
	LevelUnknown   DegreeLevel = "Unknown"
)

// gradeRanking orders letter grades including +/- modifiers. Higher is better.
var gradeRanking = map[string]int{
	"A+": 13, "A": 12, "A-": 11,
	"B+": 10, "B": 9, "B-": 8,
	"C+": 7, "C": 6, "C-": 5,
	"D+": 4, "D": 3, "D-": 2,
	"F": 1,
}

// passingGrades is the minimum passing grade per degree level.
var passingGrades = map[DegreeLevel]string{
	LevelDoctorate: "C",
	LevelMaster:    "C",
	LevelBachelor:  "D",
}

var (
	doctorateWords = []string{"phd", "doctor", "md", "dnp", "dr"}
	masterWords    = []string{"master", "ms", "ma", "mba", "m.ed", "mph"}
	bachelorWords  = []string{"bachelor", "bs", "ba", "b.ed", "bba", "bsc"}
)

// CategorizeDegree buckets a free-form degree name into a DegreeLevel using
// keyword matching.
func CategorizeDegree(degree string) DegreeLevel {
	d := strings.ToLower(degree)
	if d == "" {
		return LevelUnknown
	}
	containsAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(d, w) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny(doctorateWords):
		return LevelDoctorate
	case containsAny(masterWords):
		return LevelMaster
	case containsAny(bachelorWords):
		return LevelBachelor
	default:
		return LevelUnknown
	}
}

// GradeRank returns the ranking of a letter grade, or 0 for an unrecognized
// grade.
func GradeRank(grade string) int {
	return gradeRanking[strings.ToUpper(strings.TrimSpace(grade))]
}

// IsPassingGrade reports whether a grade meets the passing threshold for the
// degree level. Unknown grades and unknown levels are not passing.
func IsPassingGrade(grade string, level DegreeLevel) bool {
	threshold, ok := passingGrades[level]
	if !ok {
		return false
	}
	rank := GradeRank(grade)
	return rank > 0 && rank >= gradeRanking[threshold]
}

// AdjustedCredits returns the credits that actually count toward the degree:
// zero when the grade is missing or below passing, the earned credits
// otherwise.
func AdjustedCredits(grade string, creditsEarned float64, level DegreeLevel) float64 {
	if grade == "" || !IsPassingGrade(grade, level) {
		return 0
	}
	return creditsEarned
}
