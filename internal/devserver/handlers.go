package devserver

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wu-transcripts/uploader/internal/models"
	"github.com/wu-transcripts/uploader/internal/transport"
)

// Upload limits, matching the published backend contract.
const maxUploadSize = 5 * 1024 * 1024

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".csv":  true,
}

func (s *Server) handleCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"course_categories": s.categories,
	})
}

// handleUpload accepts one multipart file and kicks off the simulated
// processing pipeline. The readiness outcome arrives over the file's
// websocket channel, never in this response.
func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "no file provided",
		})
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("file format not allowed: %s", fh.Filename),
		})
	}
	if fh.Size > maxUploadSize {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("file too large: %s", fh.Filename),
		})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"status":  "error",
			"message": "failed to read upload",
		})
	}
	src.Close()

	go s.process(fh.Filename)

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "File received and queued for processing.",
	})
}

// process simulates OCR and classification, then notifies the file's channel.
func (s *Server) process(fileName string) {
	time.Sleep(s.processingDelay)

	groups := s.generate(fileName)
	if len(groups) == 0 {
		fmt.Printf("[DevServer] %s processed, nothing to review\n", fileName)
		s.notify(fileName, eventNoFlagged)
		return
	}

	s.mu.Lock()
	s.flagged[fileName] = groups
	s.mu.Unlock()

	fmt.Printf("[DevServer] %s processed, %d flagged group(s)\n", fileName, len(groups))
	s.notify(fileName, eventReady)
}

func (s *Server) handleGetFlagged(c echo.Context) error {
	token := c.QueryParam("file_name")
	fileName, err := transport.DecodeFileToken(token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "invalid file_name token",
		})
	}

	s.mu.Lock()
	groups := s.flagged[fileName]
	s.mu.Unlock()

	if groups == nil {
		groups = []models.FlaggedDegreeGroup{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":          "success",
		"flagged_courses": groups,
	})
}

type submitRequest struct {
	FileName  string                      `json:"file_name"`
	Decisions []models.FlaggedDegreeGroup `json:"decisions"`
}

func (s *Server) handleSubmitDecisions(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "invalid request body",
		})
	}
	fileName, err := transport.DecodeFileToken(req.FileName)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "invalid file_name token",
		})
	}

	s.mu.Lock()
	for _, g := range req.Decisions {
		level := models.CategorizeDegree(g.Degree)
		for _, course := range g.Courses {
			rec := courseRecord{
				FileName:   fileName,
				Degree:     g.Degree,
				Level:      level,
				Category:   "Uncategorized",
				CourseName: course.CourseName,
				Passed:     course.IsPassed,
			}
			if course.SuggestedCategory != nil && *course.SuggestedCategory != "" {
				rec.Category = *course.SuggestedCategory
			}
			if course.CreditsEarned != nil {
				rec.Credits = *course.CreditsEarned
			}
			s.records = append(s.records, rec)
		}
	}
	delete(s.flagged, fileName)
	s.mu.Unlock()

	// Review is finished; close the file's channel gracefully.
	s.notify(fileName, eventIntentionalClosure)
	s.closeConn(fileName)

	return c.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "User decisions recorded.",
	})
}

func (s *Server) handleSearch(c echo.Context) error {
	var criteria models.SearchCriteria
	if err := c.Bind(&criteria); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": "invalid search criteria",
		})
	}
	if err := criteria.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"status":  "error",
			"message": err.Error(),
		})
	}

	s.mu.Lock()
	matched := make([]courseRecord, 0)
	for _, rec := range s.records {
		if criteria.CourseCategory != "" && !strings.EqualFold(rec.Category, criteria.CourseCategory) {
			continue
		}
		if len(criteria.EducationLevel) > 0 && !levelMatches(rec.Level, criteria.EducationLevel) {
			continue
		}
		matched = append(matched, rec)
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return c.JSON(http.StatusNotFound, map[string]any{
			"status":       "not_found",
			"message":      "No transcripts found for the given search criteria.",
			"queried_data": []models.SearchRow{},
		})
	}

	rows := summarize(matched)
	educator := ""
	if criteria.EducatorFirstName != "" && criteria.EducatorLastName != "" {
		educator = criteria.EducatorFirstName + " " + criteria.EducatorLastName
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "success",
		"queried_data":  rows,
		"educator_name": educator,
		"message":       "Transcripts retrieved successfully.",
		"notes": "Note: A course with 0 credit may fall into one of the following cases: " +
			"1. The course is not an actual academic course but is designed for administrative or tracking purposes. " +
			"2. The educator did not pass the course.",
	})
}

// summarize groups matched courses into one row per category.
func summarize(records []courseRecord) []models.SearchRow {
	byCategory := make(map[string][]string)
	order := []string{}
	for _, rec := range records {
		credits := rec.Credits
		if rec.Passed != nil && !*rec.Passed {
			credits = 0
		}
		detail := fmt.Sprintf("%s (%.1f credits)", rec.CourseName, credits)
		if _, ok := byCategory[rec.Category]; !ok {
			order = append(order, rec.Category)
		}
		byCategory[rec.Category] = append(byCategory[rec.Category], detail)
	}
	rows := make([]models.SearchRow, 0, len(order))
	for _, cat := range order {
		rows = append(rows, models.SearchRow{
			Category:      cat,
			CourseDetails: strings.Join(byCategory[cat], "; "),
		})
	}
	return rows
}

func levelMatches(level models.DegreeLevel, wanted []string) bool {
	for _, w := range wanted {
		if strings.EqualFold(string(level), w) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
