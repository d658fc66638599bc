package templates

import (
	"fmt"

	"github.com/osteele/liquid"
)

// Rendered is a template with its variables substituted.
type Rendered struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Renderer expands Liquid markup such as {{ first_name }} in templates.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render substitutes vars into the subject, HTML and plain-text bodies.
func (r *Renderer) Render(t *Template, vars map[string]interface{}) (*Rendered, error) {
	bindings := liquid.Bindings(vars)

	subject, err := r.engine.ParseAndRenderString(t.Subject, bindings)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	html, err := r.engine.ParseAndRenderString(t.HTMLContent, bindings)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	text, err := r.engine.ParseAndRenderString(t.Content, bindings)
	if err != nil {
		return nil, fmt.Errorf("render content: %w", err)
	}
	return &Rendered{Subject: subject, HTML: html, Text: text}, nil
}
