// Package text builds chat components. Legacy § formatting codes are parsed
// and removed with gophertunnel's text package.
package text

import (
	"encoding/json"
	"fmt"
	"strings"

	mctext "github.com/sandertv/gophertunnel/minecraft/text"
)

// Component is a chat component. It encodes to JSON for the status and login
// phases and to network NBT everywhere else.
type Component struct {
	Text          string      `json:"text,omitempty" nbt:"text,omitempty"`
	Translate     string      `json:"translate,omitempty" nbt:"translate,omitempty"`
	With          []Component `json:"with,omitempty" nbt:"with,omitempty"`
	Color         string      `json:"color,omitempty" nbt:"color,omitempty"`
	Bold          bool        `json:"bold,omitempty" nbt:"bold,omitempty"`
	Italic        bool        `json:"italic,omitempty" nbt:"italic,omitempty"`
	Underlined    bool        `json:"underlined,omitempty" nbt:"underlined,omitempty"`
	Strikethrough bool        `json:"strikethrough,omitempty" nbt:"strikethrough,omitempty"`
	Obfuscated    bool        `json:"obfuscated,omitempty" nbt:"obfuscated,omitempty"`
	Extra         []Component `json:"extra,omitempty" nbt:"extra,omitempty"`
}

// Plain returns a component holding s verbatim. Legacy formatting codes in s
// are rendered by the client.
func Plain(s string) Component {
	return Component{Text: s}
}

// Plainf formats according to a format specifier and returns a plain
// component.
func Plainf(format string, a ...any) Component {
	return Plain(fmt.Sprintf(format, a...))
}

// Error returns a red component, used for every user-visible error.
func Error(s string) Component {
	return Component{Text: s, Color: "red"}
}

// Errorf formats according to a format specifier and returns an error
// component.
func Errorf(format string, a ...any) Component {
	return Error(fmt.Sprintf(format, a...))
}

// Translatable returns a component rendered by the client from its language
// file.
func Translatable(key string, with ...string) Component {
	c := Component{Translate: key}
	for _, w := range with {
		c.With = append(c.With, Plain(w))
	}
	return c
}

// JSON returns the JSON form of c.
func (c Component) JSON() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// String returns the text of c and its children with formatting codes
// removed, for logging.
func (c Component) String() string {
	var sb strings.Builder
	c.writePlain(&sb)
	return mctext.Clean(sb.String())
}

func (c Component) writePlain(sb *strings.Builder) {
	if c.Text != "" {
		sb.WriteString(c.Text)
	} else if c.Translate != "" {
		sb.WriteString(c.Translate)
		for _, w := range c.With {
			sb.WriteByte(' ')
			w.writePlain(sb)
		}
	}
	for _, e := range c.Extra {
		e.writePlain(sb)
	}
}

// Section is the legacy formatting code prefix.
const Section = '§'
