package templating

import (
	"errors"
	"fmt"
)

var (
	// ErrTemplateNotFound is returned when a template source does not exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrIncludeDepth is returned when includes nest deeper than
	// TemplateConfig.MaxIncludeDepth.
	ErrIncludeDepth = errors.New("include depth exceeded")
)

// RenderError is a failure while executing a compiled template.
type RenderError struct {
	// Template is the layout-qualified name of the failing template.
	Template string
	// Line is the source line of the failing instruction, 0 if unknown.
	Line int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("template %s line %d: %v", e.Template, e.Line, e.Err)
	}
	return fmt.Sprintf("template %s: %v", e.Template, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
