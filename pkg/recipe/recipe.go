// Package recipe loads directive definitions from YAML files.
//
// A recipe either names a built-in preset, defines a directive from scratch,
// or names a preset and overrides some of its fields:
//
//	name: nginx
//	block: http
//	pattern: '^\s*include\s+/etc/nginx/sites-enabled/\*\s*;'
//	directive: '    include /etc/nginx/sites-enabled/*;'
//	backup: true
package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/openfroyo/confpatch/pkg/blockpatch"
	"gopkg.in/yaml.v3"
)

// Recipe is the on-disk form of a directive definition.
type Recipe struct {
	// Name is a free-form label used in logs and the journal.
	Name string `yaml:"name,omitempty" validate:"omitempty,max=64"`

	// Preset names a built-in directive to start from.
	Preset string `yaml:"preset,omitempty"`

	// Block is the name of the block that must contain the directive.
	Block string `yaml:"block,omitempty" validate:"required_without=Preset,max=128"`

	// Pattern is a regular expression matching existing directive lines.
	Pattern string `yaml:"pattern,omitempty" validate:"required_without=Preset"`

	// Literal is the line inserted when the block lacks it.
	Literal string `yaml:"directive,omitempty" validate:"required_without=Preset"`

	// CommentPrefix is the marker used to disable lines outside the block.
	CommentPrefix string `yaml:"comment_prefix,omitempty" validate:"omitempty,max=8"`

	// Backup asks for a .bak copy before the file is rewritten.
	Backup bool `yaml:"backup,omitempty"`
}

// Loader parses and validates recipes.
type Loader struct {
	validate *validator.Validate
}

// NewLoader creates a new recipe loader.
func NewLoader() *Loader {
	return &Loader{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// LoadFile reads a recipe from a YAML file.
func (l *Loader) LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}
	r, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes and validates a recipe. Unknown keys are rejected.
func (l *Loader) Parse(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var r Recipe
	if err := dec.Decode(&r); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("recipe is empty")
		}
		return nil, fmt.Errorf("failed to parse recipe YAML: %w", err)
	}
	if err := l.Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks the recipe's fields.
func (l *Loader) Validate(r *Recipe) error {
	if err := l.validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid recipe: field %s failed %q validation", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid recipe: %w", err)
	}
	if r.Preset != "" {
		if _, ok := blockpatch.LookupPreset(r.Preset); !ok {
			return fmt.Errorf("invalid recipe: unknown preset %q", r.Preset)
		}
	}
	return nil
}

// Directive resolves the recipe into a validated blockpatch.Directive.
// Fields set on the recipe override those of its preset.
func (r *Recipe) Directive() (blockpatch.Directive, error) {
	block, pattern, literal := r.Block, r.Pattern, r.Literal
	if r.Preset != "" {
		p, ok := blockpatch.LookupPreset(r.Preset)
		if !ok {
			return blockpatch.Directive{}, blockpatch.NewInvalidError(fmt.Sprintf("unknown preset %q", r.Preset), nil)
		}
		if block == "" {
			block = p.Block
		}
		if pattern == "" {
			pattern = p.Pattern
		}
		if literal == "" {
			literal = p.Literal
		}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return blockpatch.Directive{}, blockpatch.NewInvalidError("invalid directive pattern", err)
	}

	d := blockpatch.Directive{
		Block:         block,
		Pattern:       re,
		Literal:       literal,
		CommentPrefix: r.CommentPrefix,
	}
	if err := d.Validate(); err != nil {
		return blockpatch.Directive{}, err
	}
	return d, nil
}

// Label returns the recipe's display name.
func (r *Recipe) Label() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.Preset != "":
		return r.Preset
	default:
		return r.Block
	}
}
