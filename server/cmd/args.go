package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// ParamType is the kind of value a parameter accepts.
type ParamType uint8

const (
	// ParamString is a single word.
	ParamString ParamType = iota
	// ParamQuotable is a single word or a quoted phrase.
	ParamQuotable
	// ParamInt is a 32-bit integer, optionally bounded by Min and Max.
	ParamInt
	// ParamBool is true or false.
	ParamBool
	// ParamPlayer is the name of a player. Clients complete it with the names
	// of online players.
	ParamPlayer
	// ParamEnum is one of Options.
	ParamEnum
	// ParamText takes the rest of the line. It must be the last parameter.
	ParamText
)

// Param is one parameter of a command.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	Optional    bool
	// Options are the values of a ParamEnum.
	Options []string
	// Suggestions are offered for completion of the parameter. They do not
	// restrict the accepted values.
	Suggestions []string
	// Min and Max bound a ParamInt when non-nil.
	Min, Max *int32
}

func (p Param) usage() string {
	name := p.Name
	if p.Type == ParamEnum {
		name = strings.Join(p.Options, "|")
	}
	if p.Optional {
		return "[" + name + "]"
	}
	return "<" + name + ">"
}

// Bound returns a pointer to v, for Param.Min and Param.Max.
func Bound(v int32) *int32 { return &v }

// Split splits a command line into words. Quotes group words the way a shell
// does; a line a shell could not split, such as one with an unmatched quote,
// is split on whitespace instead.
func Split(line string) []string {
	words, err := shlex.Split(line)
	if err != nil {
		return strings.Fields(line)
	}
	return words
}

// Args holds the parsed parameters of a command.
type Args struct {
	values map[string]any
}

// Has reports whether the named parameter was given.
func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns a ParamString, ParamQuotable, ParamPlayer, ParamEnum or
// ParamText value.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Int returns a ParamInt value.
func (a Args) Int(name string) int32 {
	v, _ := a.values[name].(int32)
	return v
}

// Bool returns a ParamBool value.
func (a Args) Bool(name string) bool {
	v, _ := a.values[name].(bool)
	return v
}

// ErrSyntax is returned for arguments that do not fit the parameters of a
// command.
var ErrSyntax = errors.New("syntax error")

// ParseArgs parses words against params.
func ParseArgs(params []Param, words []string) (Args, error) {
	args := Args{values: make(map[string]any, len(params))}
	for i, p := range params {
		if i >= len(words) {
			if !p.Optional {
				return args, fmt.Errorf("%w: missing %v", ErrSyntax, p.Name)
			}
			break
		}
		word := words[i]
		switch p.Type {
		case ParamText:
			args.values[p.Name] = strings.Join(words[i:], " ")
			return args, nil
		case ParamInt:
			n, err := strconv.ParseInt(word, 10, 32)
			if err != nil {
				return args, fmt.Errorf("%w: %v is not an integer", ErrSyntax, word)
			}
			v := int32(n)
			if p.Min != nil && v < *p.Min {
				return args, fmt.Errorf("%w: %v must not be less than %v", ErrSyntax, p.Name, *p.Min)
			}
			if p.Max != nil && v > *p.Max {
				return args, fmt.Errorf("%w: %v must not be more than %v", ErrSyntax, p.Name, *p.Max)
			}
			args.values[p.Name] = v
		case ParamBool:
			b, err := strconv.ParseBool(word)
			if err != nil {
				return args, fmt.Errorf("%w: %v is not true or false", ErrSyntax, word)
			}
			args.values[p.Name] = b
		case ParamEnum:
			idx := slices.IndexFunc(p.Options, func(o string) bool { return strings.EqualFold(o, word) })
			if idx < 0 {
				return args, fmt.Errorf("%w: expected one of %v", ErrSyntax, strings.Join(p.Options, ", "))
			}
			args.values[p.Name] = p.Options[idx]
		case ParamQuotable:
			args.values[p.Name] = word
		case ParamString, ParamPlayer:
			if strings.ContainsAny(word, " \t") {
				return args, fmt.Errorf("%w: %v must be a single word", ErrSyntax, p.Name)
			}
			args.values[p.Name] = word
		default:
			args.values[p.Name] = word
		}
	}
	if len(words) > len(params) {
		return args, fmt.Errorf("%w: too many arguments", ErrSyntax)
	}
	return args, nil
}
