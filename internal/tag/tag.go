// Package tag derives the string identity of a screen.
//
// Navigators never compare screens directly. They push and look up stack
// entries by tag, and the strategy producing those tags is pluggable:
//
//   - StringExtractor accepts strings only
//   - TypeExtractor (the default) uses the fully-qualified type name
//   - JSONExtractor appends the canonical JSON of the screen's arguments
package tag

import (
	"fmt"
	"reflect"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/navqueue/internal/canonical"
)

// Extractor turns a screen, or something identifying one, into a tag.
type Extractor interface {
	Extract(source any) (string, error)
}

// Tagger is implemented by sources that name themselves.
type Tagger interface {
	Tag() string
}

// Argumented is implemented by screens that carry arguments.
type Argumented interface {
	Arguments() map[string]any
}

// UnsupportedSourceError is returned when an extractor cannot derive a tag
// from the given source.
type UnsupportedSourceError struct {
	Extractor string
	Source    string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("%s doesn't support %s", e.Extractor, e.Source)
}

func unsupported(extractor any, source any) error {
	return &UnsupportedSourceError{
		Extractor: fmt.Sprintf("%T", extractor),
		Source:    fmt.Sprintf("%T", source),
	}
}

// Default returns the default strategy.
func Default() Extractor {
	return TypeExtractor{}
}

// StringExtractor passes strings through unchanged.
type StringExtractor struct{}

// Extract implements Extractor.
func (x StringExtractor) Extract(source any) (string, error) {
	if s, ok := source.(string); ok {
		return s, nil
	}
	return "", unsupported(x, source)
}

// TypeExtractor tags a screen with its fully-qualified type name.
//
// Accepted sources: strings (passed through), Tagger values, reflect.Type
// values naming a type, and values of named struct types or pointers to them.
type TypeExtractor struct{}

// Extract implements Extractor.
func (x TypeExtractor) Extract(source any) (string, error) {
	switch v := source.(type) {
	case string:
		return v, nil
	case Tagger:
		return norm.NFC.String(v.Tag()), nil
	case reflect.Type:
		if name, ok := typeName(v); ok {
			return name, nil
		}
		return "", &UnsupportedSourceError{Extractor: fmt.Sprintf("%T", x), Source: v.String()}
	}
	if source == nil {
		return "", unsupported(x, source)
	}
	t := reflect.TypeOf(source)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return "", unsupported(x, source)
	}
	if name, ok := typeName(t); ok {
		return name, nil
	}
	return "", unsupported(x, source)
}

func typeName(t reflect.Type) (string, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "", false
	}
	if t.PkgPath() == "" {
		return t.Name(), true
	}
	return t.PkgPath() + "." + t.Name(), true
}

// JSONExtractor appends the canonical JSON of a screen's arguments to the
// tag produced by Base, so the same screen type with different arguments
// gets distinct stack entries. Arguments must be canonical-JSON encodable.
type JSONExtractor struct {
	Base Extractor
}

// Extract implements Extractor.
func (x JSONExtractor) Extract(source any) (string, error) {
	base := x.Base
	if base == nil {
		base = Default()
	}
	tag, err := base.Extract(source)
	if err != nil {
		return "", err
	}
	a, ok := source.(Argumented)
	if !ok {
		return tag, nil
	}
	args := a.Arguments()
	if args == nil {
		return tag, nil
	}
	data, err := canonical.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("tag %s arguments: %w", tag, err)
	}
	return tag + "_" + string(data), nil
}
