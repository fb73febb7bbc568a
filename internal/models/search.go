package models

import "errors"

// SearchCriteria is the query payload for POST /search. Educator first and
// last name must both be present or both be absent.
type SearchCriteria struct {
	EducatorFirstName string   `json:"educator_first_name"`
	EducatorLastName  string   `json:"educator_last_name"`
	CourseCategory    string   `json:"course_category"`
	EducationLevel    []string `json:"education_level"`
}

// ErrPartialEducatorName is returned when only one half of the educator name
// was supplied.
var ErrPartialEducatorName = errors.New("educator first and last name must be provided together")

// Validate enforces the name-pairing invariant.
func (c SearchCriteria) Validate() error {
	if (c.EducatorFirstName == "") != (c.EducatorLastName == "") {
		return ErrPartialEducatorName
	}
	return nil
}

// SearchRow is one summary row of queried transcript data. The field names
// mirror the backend's response keys verbatim.
type SearchRow struct {
	Category      string `json:"Category"`
	CourseDetails string `json:"Course Details"`
}

// SearchResult is the full /search response. Status distinguishes an empty
// result set ("not_found") from a failed request ("error").
type SearchResult struct {
	Status       string      `json:"status"`
	QueriedData  []SearchRow `json:"queried_data"`
	EducatorName string      `json:"educator_name,omitempty"`
	Message      string      `json:"message"`
	Notes        string      `json:"notes,omitempty"`
}
