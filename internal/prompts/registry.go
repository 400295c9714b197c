// Package prompts holds the named prompt templates used by every LLM feature.
//
// Templates are plain text files with {name} placeholders. Only placeholders
// whitelisted for the template's feature are substituted, so literal JSON
// examples such as {"content": "..."} pass through untouched.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
)

// DefaultVariant is used when a caller does not ask for a specific variant.
const DefaultVariant = "default"

//go:embed templates/*.txt
var embeddedTemplates embed.FS

var (
	// ErrMissingPlaceholder is a programmer error: a template placeholder had no value.
	ErrMissingPlaceholder = errors.New("prompt missing placeholder")
	// ErrUnknownPlaceholder is a programmer error: a value was given for a name the feature does not accept.
	ErrUnknownPlaceholder = errors.New("prompt unknown placeholder")
	ErrUnknownFeature     = errors.New("unknown prompt feature")
	ErrTemplateNotFound   = errors.New("prompt template not found")
)

// placeholderPattern matches {identifier}; JSON keys are quoted and never match.
var placeholderPattern = regexp.MustCompile(`\{([a-z][a-z0-9_]*)\}`)

// Template is a single prompt body for a feature variant.
type Template struct {
	Feature Feature
	Variant string
	Body    string

	placeholders []string
}

// Registry is a read-only mapping from (feature, variant) to a template.
type Registry struct {
	templates map[string]Template
}

// NewRegistry loads the templates embedded in the binary.
func NewRegistry() (*Registry, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded templates: %w", err)
	}
	return NewRegistryFromFS(sub)
}

// MustRegistry is NewRegistry for package-level wiring; the embedded templates
// are validated by tests so a failure here is a build defect.
func MustRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistryFromFS loads every <feature>.<variant>.txt file at the root of fsys.
func NewRegistryFromFS(fsys fs.FS) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	r := &Registry{templates: make(map[string]Template)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".txt" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".txt")
		feature, variant, ok := strings.Cut(name, ".")
		if !ok || variant == "" {
			return nil, fmt.Errorf("template file %q must be named <feature>.<variant>.txt", e.Name())
		}
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", e.Name(), err)
		}
		tmpl, err := newTemplate(Feature(feature), variant, string(body))
		if err != nil {
			return nil, err
		}
		r.templates[key(tmpl.Feature, variant)] = tmpl
	}

	slog.Debug("Prompt registry loaded", "templates", len(r.templates))
	return r, nil
}

func newTemplate(feature Feature, variant, body string) (Template, error) {
	spec, ok := featureSpecs[feature]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}

	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if !spec.accepts(name) {
			return Template{}, fmt.Errorf("%w: {%s} in %s.%s", ErrUnknownPlaceholder, name, feature, variant)
		}
		seen[name] = true
	}
	if spec.payload != "" && !seen[spec.payload] {
		return Template{}, fmt.Errorf("template %s.%s does not use its payload placeholder {%s}", feature, variant, spec.payload)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	return Template{Feature: feature, Variant: variant, Body: body, placeholders: names}, nil
}

// Template returns the template for a feature variant. An empty variant means DefaultVariant.
func (r *Registry) Template(feature Feature, variant string) (Template, error) {
	if variant == "" {
		variant = DefaultVariant
	}
	if _, ok := featureSpecs[feature]; !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	tmpl, ok := r.templates[key(feature, variant)]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s.%s", ErrTemplateNotFound, feature, variant)
	}
	return tmpl, nil
}

// Render substitutes vars into the feature variant's template.
//
// Every name in vars must be whitelisted for the feature, and every placeholder
// used by the body must have a value.
func (r *Registry) Render(feature Feature, variant string, vars map[string]string) (string, error) {
	tmpl, err := r.Template(feature, variant)
	if err != nil {
		return "", err
	}
	spec := featureSpecs[feature]

	for name := range vars {
		if !spec.accepts(name) {
			return "", fmt.Errorf("%w: %q for feature %s", ErrUnknownPlaceholder, name, feature)
		}
	}
	var missing []string
	for _, name := range tmpl.placeholders {
		if _, ok := vars[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s.%s needs %s", ErrMissingPlaceholder, feature, tmpl.Variant, strings.Join(missing, ", "))
	}

	return placeholderPattern.ReplaceAllStringFunc(tmpl.Body, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := vars[name]; ok && spec.accepts(name) {
			return v
		}
		return token
	}), nil
}

// Features lists the registered (feature, variant) pairs, sorted.
func (r *Registry) Features() []string {
	out := make([]string, 0, len(r.templates))
	for k := range r.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func key(feature Feature, variant string) string {
	return string(feature) + "." + variant
}
