// Package devserver is a local stand-in for the transcript processing
// backend. It implements the exact HTTP and websocket interface the uploader
// consumes, with a simulated processing pipeline, so the client can be
// developed and tested end to end without the real OCR services.
package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/wu-transcripts/uploader/internal/models"
)

// Generator produces the flagged groups for an uploaded file. Returning an
// empty slice means the file has nothing to review.
type Generator func(fileName string) []models.FlaggedDegreeGroup

// Server simulates the transcript backend.
type Server struct {
	echo            *echo.Echo
	upgrader        websocket.Upgrader
	processingDelay time.Duration
	categories      []string
	generate        Generator

	mu      sync.Mutex
	flagged map[string][]models.FlaggedDegreeGroup
	conns   map[string]*websocket.Conn
	records []courseRecord
}

// courseRecord is one reviewed course retained for /search.
type courseRecord struct {
	FileName   string
	Degree     string
	Level      models.DegreeLevel
	Category   string
	CourseName string
	Credits    float64
	Passed     *bool
}

// Option tunes the server.
type Option func(*Server)

// WithProcessingDelay sets how long the simulated pipeline takes per file.
func WithProcessingDelay(d time.Duration) Option {
	return func(s *Server) { s.processingDelay = d }
}

// WithCategories replaces the category list.
func WithCategories(categories []string) Option {
	return func(s *Server) { s.categories = categories }
}

// WithGenerator replaces the flagged-course generator, letting tests script
// exactly what each file produces.
func WithGenerator(g Generator) Option {
	return func(s *Server) { s.generate = g }
}

// New creates a devserver with routes registered.
func New(opts ...Option) *Server {
	s := &Server{
		processingDelay: 200 * time.Millisecond,
		categories:      defaultCategories(),
		upgrader: websocket.Upgrader{
			// Local development tool; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		flagged: make(map[string][]models.FlaggedDegreeGroup),
		conns:   make(map[string]*websocket.Conn),
	}
	s.generate = s.defaultGenerator
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))

	e.GET("/course-categories", s.handleCategories)
	e.POST("/upload", s.handleUpload)
	e.GET("/get_flagged_courses", s.handleGetFlagged)
	e.POST("/submit_user_decisions", s.handleSubmitDecisions)
	e.POST("/search", s.handleSearch)
	e.GET("/ws/flagged_courses/:token", s.handleWebSocket)

	s.echo = e
	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start blocks serving on addr.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// defaultCategories is a plausible course taxonomy for local development.
func defaultCategories() []string {
	return []string{
		"Biology",
		"Chemistry",
		"Computer Science",
		"Education",
		"English",
		"History",
		"Mathematics",
		"Physics",
		"Psychology",
	}
}

// defaultGenerator flags every upload with one deterministic degree group,
// except files whose name contains "clean" which produce nothing to review.
func (s *Server) defaultGenerator(fileName string) []models.FlaggedDegreeGroup {
	if containsFold(fileName, "clean") {
		return nil
	}
	noSuggestion := ""
	mathematics := "Mathematics"
	credits := 3.0
	grade := "B+"
	return []models.FlaggedDegreeGroup{
		{
			FileName: fileName,
			Degree:   "Bachelor of Science",
			Major:    "Mathematics",
			Courses: []models.FlaggedCourse{
				{
					CourseName:        "Advanced Calculus",
					CourseIndex:       0,
					SuggestedCategory: &noSuggestion,
				},
				{
					CourseName:        "Linear Algebra",
					CourseIndex:       1,
					SuggestedCategory: &mathematics,
					CreditsEarned:     &credits,
					Grade:             &grade,
				},
			},
		},
	}
}
