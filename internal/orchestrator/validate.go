package orchestrator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wu-transcripts/uploader/internal/models"
)

// ErrTooManyFiles rejects the whole batch; nothing is enqueued.
type ErrTooManyFiles struct {
	Selected int
	Max      int
}

func (e *ErrTooManyFiles) Error() string {
	return fmt.Sprintf("too many files selected: %d (maximum allowed is %d)", e.Selected, e.Max)
}

// ValidateSelection applies the selection-time policy: the batch size cap
// rejects everything, while per-file type and size violations route files to
// the invalid list and keep the rest, preserving selection order. Duplicate
// filenames are disambiguated with a queue-position suffix so their
// transport tokens never collide.
func (c *Controller) ValidateSelection(files []models.PendingFile) ([]models.PendingFile, []models.InvalidFile, error) {
	if len(files) > c.opts.MaxFiles {
		return nil, nil, &ErrTooManyFiles{Selected: len(files), Max: c.opts.MaxFiles}
	}

	allowed := make(map[string]bool, len(c.opts.AllowedTypes))
	for _, t := range c.opts.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}

	var valid []models.PendingFile
	var invalid []models.InvalidFile
	seen := make(map[string]int)

	for _, f := range files {
		switch {
		case !allowed[strings.ToLower(f.MIMEType)]:
			invalid = append(invalid, models.InvalidFile{
				File:   f,
				Reason: fmt.Sprintf("file type %q is not allowed", f.MIMEType),
			})
			continue
		case f.Size > c.opts.MaxFileSize:
			invalid = append(invalid, models.InvalidFile{
				File:   f,
				Reason: fmt.Sprintf("file exceeds the %d byte size limit", c.opts.MaxFileSize),
			})
			continue
		}

		seen[f.Name]++
		if n := seen[f.Name]; n > 1 {
			renamed := disambiguate(f.Name, n)
			// Keep the suffixed name unique against explicit selections too.
			for seen[renamed] > 0 {
				n++
				renamed = disambiguate(f.Name, n)
			}
			seen[renamed]++
			f.Name = renamed
		}
		valid = append(valid, f)
	}
	return valid, invalid, nil
}

// disambiguate inserts a position suffix before the extension:
// "transcript.pdf" -> "transcript (2).pdf".
func disambiguate(name string, n int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
