// Package persona holds the structured employment document the chat agent speaks for.
// The document is loaded once at start-up and passed explicitly to every consumer.
package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("persona: unsupported document format")
	ErrMissingName       = errors.New("persona: name is required")
)

// Document is the read-only persona record.
type Document struct {
	Name       string   `json:"name" yaml:"name"`
	Title      string   `json:"title" yaml:"title"`
	Summary    string   `json:"summary" yaml:"summary"`
	Intro      string   `json:"intro" yaml:"intro"`
	Employment []Job    `json:"employment" yaml:"employment"`
	Skills     Skills   `json:"skills" yaml:"skills"`
	Education  []Degree `json:"education" yaml:"education"`
	Contact    Contact  `json:"contact" yaml:"contact"`
	Avatar     string   `json:"avatar,omitempty" yaml:"avatar"`
	ResumeURL  string   `json:"resume_url,omitempty" yaml:"resume_url"`

	// AdditionalContext is free-form and only ever reaches the model prompt.
	AdditionalContext any `json:"additional_context,omitempty" yaml:"additional_context"`
}

type Job struct {
	Role             string   `json:"role" yaml:"role"`
	Company          string   `json:"company" yaml:"company"`
	Duration         string   `json:"duration" yaml:"duration"`
	Location         string   `json:"location" yaml:"location"`
	Responsibilities []string `json:"responsibilities" yaml:"responsibilities"`
	Achievements     []string `json:"achievements" yaml:"achievements"`
	Technologies     []string `json:"technologies" yaml:"technologies"`
}

type Skills struct {
	Languages []string `json:"languages" yaml:"languages"`
	Frontend  []string `json:"frontend" yaml:"frontend"`
	Backend   []string `json:"backend" yaml:"backend"`
	Databases []string `json:"databases" yaml:"databases"`
	Cloud     []string `json:"cloud" yaml:"cloud"`
	Tools     []string `json:"tools" yaml:"tools"`
	Other     []string `json:"other" yaml:"other"`
}

type Degree struct {
	Degree string `json:"degree" yaml:"degree"`
	School string `json:"school" yaml:"school"`
	Year   string `json:"year" yaml:"year"`
}

type Contact struct {
	Phone  string `json:"phone,omitempty" yaml:"phone"`
	Email  string `json:"email,omitempty" yaml:"email"`
	GitHub string `json:"github,omitempty" yaml:"github"`
}

// Format selects the decoder used by Parse.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the document format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads and validates the document at path.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read %s: %w", path, err)
	}
	return Parse(data, format)
}

// Parse decodes a document. The only required field is Name.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("persona: decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("persona: decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, ErrMissingName
	}
	return &doc, nil
}

// FirstName is the name the agent uses when staying in character.
func (d *Document) FirstName() string {
	fields := strings.Fields(d.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// JSON renders the full document, additional_context included, with two-space indent.
func (d *Document) JSON() (string, error) {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("persona: encode json: %w", err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
