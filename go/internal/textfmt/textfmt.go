// Package textfmt converts the tag markup used in message templates, such as
// "<red><bold>Closed</bold></red>", into legacy section-sign formatting codes
// for Minecraft clients or into plain text for everything else.
package textfmt

import (
	"slices"
	"strings"
)

const sectionSign = "§"

var codes = map[string]string{
	"black":         "0",
	"dark_blue":     "1",
	"dark_green":    "2",
	"dark_aqua":     "3",
	"dark_red":      "4",
	"dark_purple":   "5",
	"gold":          "6",
	"gray":          "7",
	"grey":          "7",
	"dark_gray":     "8",
	"dark_grey":     "8",
	"blue":          "9",
	"green":         "a",
	"aqua":          "b",
	"red":           "c",
	"light_purple":  "d",
	"yellow":        "e",
	"white":         "f",
	"obfuscated":    "k",
	"bold":          "l",
	"b":             "l",
	"strikethrough": "m",
	"underlined":    "n",
	"u":             "n",
	"italic":        "o",
	"i":             "o",
	"reset":         "r",
}

// tagCode returns the legacy code for an opening tag. Tags with arguments such
// as <gradient:gold:yellow> use their first colour.
func tagCode(tag string) (string, bool) {
	name, args, _ := strings.Cut(tag, ":")
	name = strings.ToLower(name)
	if code, ok := codes[name]; ok {
		return code, true
	}
	if name == "gradient" || name == "color" || name == "colour" {
		first, _, _ := strings.Cut(args, ":")
		code, ok := codes[strings.ToLower(first)]
		return code, ok
	}
	return "", false
}

func isColor(code string) bool {
	return len(code) == 1 && (code[0] >= '0' && code[0] <= '9' || code[0] >= 'a' && code[0] <= 'f')
}

type openTag struct {
	name string
	code string
}

// Legacy renders markup with section-sign codes. Closing a tag resets the
// formatting and re-applies whatever is still open. Unknown tags are dropped.
func Legacy(markup string) string {
	var (
		b     strings.Builder
		stack []openTag
	)
	walk(markup, func(text string) {
		b.WriteString(text)
	}, func(tag string, closing bool) {
		name, _, _ := strings.Cut(strings.ToLower(tag), ":")
		if closing {
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == name {
					stack = slices.Delete(stack, i, i+1)
					b.WriteString(sectionSign + "r")
					writeState(&b, stack)
					break
				}
			}
			return
		}

		code, ok := tagCode(tag)
		switch {
		case !ok:
		case code == "r":
			stack = stack[:0]
			b.WriteString(sectionSign + "r")
		case isColor(code):
			// A colour code clears decorations on the client, so they are re-applied.
			stack = append(stack, openTag{name: name, code: code})
			writeState(&b, stack)
		default:
			stack = append(stack, openTag{name: name, code: code})
			b.WriteString(sectionSign + code)
		}
	})
	return b.String()
}

func writeState(b *strings.Builder, stack []openTag) {
	color := ""
	for _, t := range stack {
		if isColor(t.code) {
			color = t.code
		}
	}
	if color != "" {
		b.WriteString(sectionSign + color)
	}
	for _, t := range stack {
		if !isColor(t.code) {
			b.WriteString(sectionSign + t.code)
		}
	}
}

// Plain strips every tag.
func Plain(markup string) string {
	var b strings.Builder
	walk(markup, func(text string) { b.WriteString(text) }, func(string, bool) {})
	return b.String()
}

// walk splits markup into text runs and tags. A '<' that does not start a
// well-formed tag is treated as text.
func walk(markup string, text func(string), tag func(name string, closing bool)) {
	for len(markup) > 0 {
		start := strings.IndexByte(markup, '<')
		if start < 0 {
			text(markup)
			return
		}
		end := strings.IndexByte(markup[start:], '>')
		if end < 0 {
			text(markup)
			return
		}
		end += start
		inner := markup[start+1 : end]
		if !validTag(inner) {
			text(markup[:start+1])
			markup = markup[start+1:]
			continue
		}
		if start > 0 {
			text(markup[:start])
		}
		if strings.HasPrefix(inner, "/") {
			tag(inner[1:], true)
		} else {
			tag(inner, false)
		}
		markup = markup[end+1:]
	}
}

func validTag(inner string) bool {
	inner = strings.TrimPrefix(inner, "/")
	if inner == "" {
		return false
	}
	for _, r := range inner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':', r == '#', r == '-':
		default:
			return false
		}
	}
	return true
}
