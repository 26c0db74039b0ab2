package blockpatch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultCommentPrefix is the marker used to neutralize directive lines.
const DefaultCommentPrefix = "#"

// Directive describes a single line that must live inside a named block.
type Directive struct {
	// Block is the name of the block that must contain the directive (e.g. "http").
	Block string

	// Pattern identifies an existing instance of the directive. It is matched
	// against the raw, unstripped line.
	Pattern *regexp.Regexp

	// Literal is the exact line inserted when the directive is missing,
	// without a trailing newline.
	Literal string

	// CommentPrefix is the marker prepended to neutralized lines.
	// Defaults to DefaultCommentPrefix.
	CommentPrefix string
}

// Validate checks that the directive can be applied idempotently.
func (d Directive) Validate() error {
	if strings.TrimSpace(d.Block) == "" {
		return NewInvalidError("block name is required", nil)
	}
	if strings.ContainsAny(d.Block, "{}") || strings.ContainsAny(d.Block, " \t\r\n") {
		return NewInvalidError(fmt.Sprintf("block name %q must be a single token", d.Block), nil)
	}
	if d.Pattern == nil {
		return NewInvalidError("directive pattern is required", nil)
	}
	if strings.TrimSpace(d.Literal) == "" {
		return NewInvalidError("directive literal is required", nil)
	}
	if strings.ContainsAny(d.Literal, "\r\n") {
		return NewInvalidError("directive literal must be a single line", nil)
	}
	// An inserted literal the pattern cannot see would be inserted again on
	// every run.
	if !d.Pattern.MatchString(d.Literal) {
		return NewInvalidError(
			fmt.Sprintf("pattern %q does not match literal %q", d.Pattern.String(), d.Literal), nil)
	}
	if d.Pattern.MatchString(d.neutralize(d.Literal)) {
		return NewInvalidError(
			fmt.Sprintf("pattern %q still matches a neutralized line", d.Pattern.String()), nil)
	}
	return nil
}

func (d Directive) commentPrefix() string {
	if d.CommentPrefix == "" {
		return DefaultCommentPrefix
	}
	return d.CommentPrefix
}

// neutralize turns an active directive line (without its line terminator)
// into a disabled one that keeps the original text.
func (d Directive) neutralize(line string) string {
	p := d.commentPrefix()
	return fmt.Sprintf("%s %s  %s disabled: was outside %s block", p, strings.TrimRight(line, " \t"), p, d.Block)
}

// Preset is a named, built-in directive definition.
type Preset struct {
	Name        string
	Description string
	Block       string
	Pattern     string
	Literal     string
}

// Directive compiles the preset into a Directive.
func (p Preset) Directive() (Directive, error) {
	re, err := regexp.Compile(p.Pattern)
	if err != nil {
		return Directive{}, NewInvalidError(fmt.Sprintf("preset %s: invalid pattern", p.Name), err)
	}
	return Directive{Block: p.Block, Pattern: re, Literal: p.Literal}, nil
}

// DefaultPresetName is the preset applied when no directive is configured.
const DefaultPresetName = "nginx-sites-enabled"

var presets = map[string]Preset{
	"nginx-sites-enabled": {
		Name:        "nginx-sites-enabled",
		Description: "include /etc/nginx/sites-enabled/* inside the http block",
		Block:       "http",
		Pattern:     `^\s*include\s+/etc/nginx/sites-enabled/\*\s*;`,
		Literal:     "    include /etc/nginx/sites-enabled/*;",
	},
	"nginx-conf-d": {
		Name:        "nginx-conf-d",
		Description: "include /etc/nginx/conf.d/*.conf inside the http block",
		Block:       "http",
		Pattern:     `^\s*include\s+/etc/nginx/conf\.d/\*\.conf\s*;`,
		Literal:     "    include /etc/nginx/conf.d/*.conf;",
	},
	"nginx-stream-d": {
		Name:        "nginx-stream-d",
		Description: "include /etc/nginx/streams-enabled/* inside the stream block",
		Block:       "stream",
		Pattern:     `^\s*include\s+/etc/nginx/streams-enabled/\*\s*;`,
		Literal:     "    include /etc/nginx/streams-enabled/*;",
	},
}

// LookupPreset returns the preset with the given name.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// Presets returns all built-in presets sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
