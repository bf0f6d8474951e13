// Package violation holds the structured validation error records that
// accumulate inside a pipeline Result.
package violation

import (
	"fmt"
	"strings"
)

// Severity grades a Violation. The zero value is SeverityUnspecified.
type Severity int

const (
	SeverityUnspecified Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityFatal:
		return "FATAL"
	default:
		return "UNSPECIFIED"
	}
}

// ParseSeverity is the inverse of Severity.String. Unknown names map to
// SeverityUnspecified.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARNING":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	case "FATAL":
		return SeverityFatal
	default:
		return SeverityUnspecified
	}
}

// Option keys understood by Violation.Severity.
const (
	OptionSevere   = "severe"
	OptionWarning  = "warning"
	OptionSeverity = "severity"
	OptionField    = "field"
)

// Violation is one structured validation fault.
type Violation struct {
	ValidationName string
	StepName       string
	Messages       []string
	Options        map[string]any
}

// Severity resolves the grade from the options map. An explicit severity
// option wins over the severe/warning flags.
func (v *Violation) Severity() Severity {
	if v.Options == nil {
		return SeverityUnspecified
	}
	switch s := v.Options[OptionSeverity].(type) {
	case Severity:
		return s
	case string:
		return ParseSeverity(s)
	}
	if severe, ok := v.Options[OptionSevere].(bool); ok && severe {
		return SeverityError
	}
	if warning, ok := v.Options[OptionWarning].(bool); ok && warning {
		return SeverityWarning
	}
	return SeverityUnspecified
}

// Equal reports structural equality: name, messages and severity. StepName
// and the remaining options are not part of the identity.
func (v *Violation) Equal(other *Violation) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.identity() == other.identity()
}

func (v *Violation) identity() string {
	var b strings.Builder
	b.WriteString(v.ValidationName)
	b.WriteByte(0)
	for _, m := range v.Messages {
		b.WriteString(m)
		b.WriteByte(0x1f)
	}
	b.WriteByte(0)
	b.WriteString(v.Severity().String())
	return b.String()
}

func (v *Violation) String() string {
	line := fmt.Sprintf("%s -> %s", v.ValidationName, strings.Join(v.Messages, ", "))
	if sev := v.Severity(); sev != SeverityUnspecified {
		line += " (" + sev.String() + ")"
	}
	return line
}

func (v *Violation) clone() *Violation {
	c := &Violation{
		ValidationName: v.ValidationName,
		StepName:       v.StepName,
		Messages:       append([]string(nil), v.Messages...),
	}
	if v.Options != nil {
		c.Options = make(map[string]any, len(v.Options))
		for k, val := range v.Options {
			c.Options[k] = val
		}
	}
	return c
}

type Option func(*Violation)

func WithSeverity(s Severity) Option {
	return func(v *Violation) { v.setOption(OptionSeverity, s) }
}

func Severe() Option {
	return func(v *Violation) { v.setOption(OptionSevere, true) }
}

func Warning() Option {
	return func(v *Violation) { v.setOption(OptionWarning, true) }
}

func WithStep(name string) Option {
	return func(v *Violation) { v.StepName = name }
}

func WithField(field string) Option {
	return func(v *Violation) { v.setOption(OptionField, field) }
}

func WithOption(key string, value any) Option {
	return func(v *Violation) { v.setOption(key, value) }
}

// WithMessages appends extra messages after the primary one.
func WithMessages(messages ...string) Option {
	return func(v *Violation) { v.Messages = append(v.Messages, messages...) }
}

func (v *Violation) setOption(key string, value any) {
	if v.Options == nil {
		v.Options = make(map[string]any)
	}
	v.Options[key] = value
}
