package post

import "strings"

// Visibility controls who can see a published draft once it goes live.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// Draft is the immutable input to one publish attempt. The caller owns it
// for the duration of the call; the pipeline never mutates it.
type Draft struct {
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	ImagePaths []string   `json:"image_paths,omitempty"`
	PlaceName  string     `json:"place_name,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// Validate checks the minimal requirements for a publishable draft.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errEmpty("title")
	}
	if strings.TrimSpace(d.Body) == "" {
		return errEmpty("body")
	}
	return nil
}

// BodyLines splits the newline-delimited body into lines for line-by-line
// typing. Trailing carriage returns from Windows-produced content are dropped.
func (d Draft) BodyLines() []string {
	lines := strings.Split(d.Body, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

type validationError struct{ field string }

func (e validationError) Error() string { return e.field + " must not be empty" }

func errEmpty(field string) error { return validationError{field: field} }
