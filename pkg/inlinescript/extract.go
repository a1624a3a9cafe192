// Package inlinescript moves the inline script of an HTML document into an
// external, content-addressed file.
//
// Extraction is pure: it maps document text to rewritten text plus the
// extracted script. Writing either to disk is the caller's job.
package inlinescript

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/crxprep/pkg/contenthash"
)

var (
	// ErrUnterminatedScript reports a script element whose end tag never appears.
	ErrUnterminatedScript = errors.New("script element is not terminated")
	// ErrUnsupportedPayload reports a script element whose content is not a single text node.
	ErrUnsupportedPayload = errors.New("script element content is not a single text node")
	// ErrScriptNotLocated reports that the selected element could not be found in the source text.
	ErrScriptNotLocated = errors.New("script element not found in source text")
)

// ExtractedScript is the file produced from one inline script.
type ExtractedScript struct {
	ContentHash string
	// FileName is "/script-<hash>.js"; it doubles as the root-relative URL.
	FileName string
	Body     []byte
}

// Result is the outcome of a successful extraction.
type Result struct {
	Script ExtractedScript
	// Src is the value written into the new tag's src attribute.
	Src string
	// HTML is the full rewritten document text.
	HTML string
}

// FileName returns the file name for a content hash.
func FileName(hash string) string {
	return "/script-" + hash + ".js"
}

// ExtractString parses source and extracts from it.
func ExtractString(source string, policy Policy) (*Result, error) {
	doc, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return Extract(doc, policy)
}

// Extract rewrites the first script selected by policy into an external
// reference. It returns nil, nil when there is nothing to extract: no
// matching script, or the first match already has a src.
func Extract(doc *Document, policy Policy) (*Result, error) {
	target, ok := firstInline(doc.Scripts(policy), policy.SkipExternal)
	if !ok {
		return nil, nil
	}
	if target.unsupported {
		return nil, ErrUnsupportedPayload
	}

	hash := contenthash.String(target.Text)
	script := ExtractedScript{
		ContentHash: hash,
		FileName:    FileName(hash),
		Body:        []byte(target.Text),
	}
	src := policy.Src(script.FileName)

	start, end, err := doc.locate(target)
	if err != nil {
		return nil, err
	}

	source := doc.Source()
	var b strings.Builder
	b.Grow(len(source))
	b.WriteString(source[:start])
	b.WriteString(externalTag(target.Attributes, src))
	b.WriteString(source[end:])

	return &Result{Script: script, Src: src, HTML: b.String()}, nil
}

func firstInline(scripts []ScriptNode, skipExternal bool) (ScriptNode, bool) {
	for _, s := range scripts {
		if !s.IsExternal() {
			return s, true
		}
		if !skipExternal {
			break
		}
	}
	return ScriptNode{}, false
}

// externalTag keeps every original attribute, in order, and appends src.
func externalTag(attrs []Attribute, src string) string {
	var b strings.Builder
	b.WriteString("<script ")
	for _, a := range attrs {
		fmt.Fprintf(&b, "%s=\"%s\" ", a.Name, escapeAttr(a.Value))
	}
	fmt.Fprintf(&b, "src=\"%s\"></script>", escapeAttr(src))
	return b.String()
}

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;")

func escapeAttr(v string) string {
	return attrEscaper.Replace(v)
}
