package inlinescript

import (
	"strings"

	"golang.org/x/net/html"
)

// locate returns the byte span of target inside the document source.
//
// The serialized element is looked up literally first. When the source spells
// the tag differently from the serializer (single quotes, bare boolean
// attributes, upper case, CRLF) the span is recovered from the tokenizer by
// counting script start tags up to the target's position.
func (d *Document) locate(target ScriptNode) (int, int, error) {
	if outer, err := target.outerHTML(); err == nil {
		if i := strings.Index(d.source, outer); i >= 0 {
			return i, i + len(outer), nil
		}
	}
	return scriptSpan(d.source, target.index)
}

func scriptSpan(source string, index int) (int, int, error) {
	z := html.NewTokenizer(strings.NewReader(source))
	offset, seen, start := 0, -1, -1

	for {
		tt := z.Next()
		size := len(z.Raw())

		switch tt {
		case html.ErrorToken:
			if start >= 0 {
				return 0, 0, ErrUnterminatedScript
			}
			return 0, 0, ErrScriptNotLocated
		case html.StartTagToken, html.SelfClosingTagToken:
			if start < 0 && isScript(z) {
				seen++
				if seen == index {
					start = offset
				}
			}
		case html.EndTagToken:
			if start >= 0 && isScript(z) {
				return start, offset + size, nil
			}
		}
		offset += size
	}
}

func isScript(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	return string(name) == "script"
}
