// Package transport wraps the backend HTTP API. Every call takes plain
// values and returns either a decoded payload or a normalized error; no
// partial response ever crosses this boundary.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wu-transcripts/uploader/internal/models"
)

// Client is the backend HTTP API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given backend base URL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is the normalized failure value for any backend call.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend request failed (HTTP %d)", e.StatusCode)
}

// EncodeFileToken converts a filename into an opaque token safe to embed in
// URL paths and query strings. The backend decodes it server-side.
func EncodeFileToken(fileName string) string {
	return base64.URLEncoding.EncodeToString([]byte(fileName))
}

// DecodeFileToken reverses EncodeFileToken.
func DecodeFileToken(token string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid file token: %w", err)
	}
	return string(b), nil
}

// statusEnvelope is the common {status, message} response shape.
type statusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FetchCategories returns the ordered list of course categories. Any failure
// degrades to an empty list; missing categories are not fatal to the caller.
func (c *Client) FetchCategories(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/course-categories", nil)
	if err != nil {
		return nil
	}
	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Printf("[Transport] Category fetch failed: %v\n", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("[Transport] Category fetch failed: HTTP %d\n", resp.StatusCode)
		return nil
	}
	var payload struct {
		CourseCategories []string `json:"course_categories"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload.CourseCategories
}

// UploadFile sends one previously validated file as multipart/form-data.
// onProgress, when non-nil, is invoked with a monotonically non-decreasing
// percentage from 0 to 100 as the request body is consumed.
func (c *Client) UploadFile(ctx context.Context, name string, r io.Reader, mimeType string, onProgress func(float64)) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)),
	}
	if mimeType != "" {
		header["Content-Type"] = []string{mimeType}
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return &APIError{Status: "error", Message: "failed to build upload request: " + err.Error()}
	}
	if _, err := io.Copy(part, r); err != nil {
		return &APIError{Status: "error", Message: "failed to read file: " + err.Error()}
	}
	if err := mw.Close(); err != nil {
		return &APIError{Status: "error", Message: "failed to build upload request: " + err.Error()}
	}

	pr := &progressReader{r: &body, total: int64(body.Len()), report: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return &APIError{Status: "error", Message: err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = pr.total

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Status: "error", Message: "upload failed: " + err.Error()}
	}
	defer resp.Body.Close()

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, env, "upload failed")
	}
	if env.Status == "error" {
		return newAPIError(resp.StatusCode, env, "upload failed")
	}
	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// FetchFlaggedCourses retrieves the flagged degree groups for a file. The
// filename is transport-encoded into an opaque token.
func (c *Client) FetchFlaggedCourses(ctx context.Context, fileName string) ([]models.FlaggedDegreeGroup, error) {
	endpoint := fmt.Sprintf("%s/get_flagged_courses?file_name=%s",
		c.baseURL, url.QueryEscape(EncodeFileToken(fileName)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &APIError{Status: "error", Message: err.Error()}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Status: "error", Message: "flagged course fetch failed: " + err.Error()}
	}
	defer resp.Body.Close()

	var payload struct {
		statusEnvelope
		FlaggedCourses []models.FlaggedDegreeGroup `json:"flagged_courses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, payload.statusEnvelope, "flagged course fetch failed")
	}
	if payload.Status == "error" {
		return nil, newAPIError(resp.StatusCode, payload.statusEnvelope, "flagged course fetch failed")
	}
	return payload.FlaggedCourses, nil
}

// SubmitDecisions posts the reviewed decision groups for a file. Numeric and
// boolean coercion has already happened when the groups were built; this
// call only ships them.
func (c *Client) SubmitDecisions(ctx context.Context, fileName string, decisions []models.FlaggedDegreeGroup) error {
	if decisions == nil {
		decisions = []models.FlaggedDegreeGroup{}
	}
	body := map[string]any{
		"file_name": EncodeFileToken(fileName),
		"decisions": decisions,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return &APIError{Status: "error", Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit_user_decisions", bytes.NewReader(buf))
	if err != nil {
		return &APIError{Status: "error", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Status: "error", Message: "decision submission failed: " + err.Error()}
	}
	defer resp.Body.Close()

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, env, "decision submission failed")
	}
	if env.Status == "error" {
		return newAPIError(resp.StatusCode, env, "decision submission failed")
	}
	return nil
}

// Search queries processed transcripts. A "no results" response (HTTP 404
// with status "not_found") is returned as a result, not an error; transport
// and server failures are errors.
func (c *Client) Search(ctx context.Context, criteria models.SearchCriteria) (*models.SearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	if criteria.EducationLevel == nil {
		criteria.EducationLevel = []string{}
	}
	buf, err := json.Marshal(criteria)
	if err != nil {
		return nil, &APIError{Status: "error", Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(buf))
	if err != nil {
		return nil, &APIError{Status: "error", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Status: "error", Message: "search failed: " + err.Error()}
	}
	defer resp.Body.Close()

	var result models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Status: "error", Message: "search returned an unreadable response"}
	}
	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusNotFound:
		return &result, nil
	default:
		return nil, newAPIError(resp.StatusCode, statusEnvelope{Status: result.Status, Message: result.Message}, "search failed")
	}
}

func newAPIError(code int, env statusEnvelope, fallback string) *APIError {
	msg := env.Message
	if msg == "" {
		msg = fmt.Sprintf("%s (HTTP %d)", fallback, code)
	}
	status := env.Status
	if status == "" {
		status = "error"
	}
	return &APIError{StatusCode: code, Status: status, Message: msg}
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// progressReader reports consumption of the request body as a percentage.
// Reported values never decrease and never exceed 100.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   float64
	report func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && p.report != nil && p.total > 0 {
		p.read += int64(n)
		pct := float64(p.read) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct >= p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}
