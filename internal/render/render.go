// Package render converts Markdown final answers into ANSI-styled terminal
// text. Headings come out bold, code cyan, blockquotes indented. Anything
// goldmark cannot parse passes through untouched.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiStrike = "\x1b[9m"
	ansiCyan   = "\x1b[36m"
)

// Option configures terminal rendering.
type Option func(*ansiRenderer)

// NoColor disables ANSI escapes, keeping only the structural formatting
// (heading spacing, list bullets, blockquote indentation).
func NoColor() Option {
	return func(r *ansiRenderer) { r.noColor = true }
}

// Terminal renders Markdown as ANSI terminal text. Parse failure returns the
// input unchanged.
func Terminal(md string, opts ...Option) string {
	ar := &ansiRenderer{}
	for _, o := range opts {
		o(ar)
	}

	r := renderer.NewRenderer(
		renderer.WithNodeRenderers(
			util.Prioritized(ar, 1),
		),
	)
	gm := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough),
		goldmark.WithRenderer(r),
	)

	var buf bytes.Buffer
	if err := gm.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return strings.TrimRight(buf.String(), "\n") + "\n"
}

// ansiRenderer implements goldmark's renderer.NodeRenderer for terminal
// output.
type ansiRenderer struct {
	noColor     bool
	listCounter int
	quoteDepth  int
}

func (r *ansiRenderer) style(code string) string {
	if r.noColor {
		return ""
	}
	return code
}

// RegisterFuncs registers render functions for each AST node kind.
func (r *ansiRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	// Block nodes
	reg.Register(ast.KindDocument, r.renderDocument)
	reg.Register(ast.KindHeading, r.renderHeading)
	reg.Register(ast.KindParagraph, r.renderParagraph)
	reg.Register(ast.KindBlockquote, r.renderBlockquote)
	reg.Register(ast.KindFencedCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
	reg.Register(ast.KindList, r.renderList)
	reg.Register(ast.KindListItem, r.renderListItem)
	reg.Register(ast.KindTextBlock, r.renderTextBlock)
	reg.Register(ast.KindThematicBreak, r.renderThematicBreak)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)

	// Inline nodes
	reg.Register(ast.KindText, r.renderText)
	reg.Register(ast.KindString, r.renderString)
	reg.Register(ast.KindCodeSpan, r.renderCodeSpan)
	reg.Register(ast.KindEmphasis, r.renderEmphasis)
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
	reg.Register(ast.KindImage, r.renderLink)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)

	reg.Register(extast.KindStrikethrough, r.renderStrikethrough)
}

func (r *ansiRenderer) renderDocument(_ util.BufWriter, _ []byte, _ ast.Node, _ bool) (ast.WalkStatus, error) {
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderHeading(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("\n" + r.style(ansiBold))
	} else {
		_, _ = w.WriteString(r.style(ansiReset) + "\n")
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderParagraph(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		if r.quoteDepth > 0 {
			_, _ = w.WriteString(r.quoteIndent())
		}
	} else {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) quoteIndent() string {
	return strings.Repeat("    ", r.quoteDepth)
}

func (r *ansiRenderer) renderBlockquote(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.quoteDepth++
	} else {
		r.quoteDepth--
	}
	_ = w
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(r.style(ansiCyan))
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			_, _ = w.WriteString("    ")
			_, _ = w.Write(line.Value(source))
		}
		_, _ = w.WriteString(r.style(ansiReset) + "\n")
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderList(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.List)
	if entering {
		if n.IsOrdered() {
			r.listCounter = int(n.Start)
		} else {
			r.listCounter = 0
		}
	} else {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderListItem(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		parent := node.Parent().(*ast.List)
		if parent.IsOrdered() {
			_, _ = fmt.Fprintf(w, "  %d. ", r.listCounter)
			r.listCounter++
		} else {
			_, _ = w.WriteString("  • ")
		}
	} else {
		_, _ = w.WriteString("\n")
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderTextBlock(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		if node.Parent() != nil && node.Parent().Kind() != ast.KindListItem {
			_, _ = w.WriteString("\n")
		}
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderThematicBreak(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("\n" + r.style(ansiDim) + strings.Repeat("─", 32) + r.style(ansiReset) + "\n")
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			_, _ = w.Write(line.Value(source))
		}
	}
	return ast.WalkContinue, nil
}

// --- Inline renderers ---

func (r *ansiRenderer) renderText(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.Text)
	_, _ = w.Write(n.Segment.Value(source))
	if n.SoftLineBreak() || n.HardLineBreak() {
		_, _ = w.WriteString("\n")
		if r.quoteDepth > 0 {
			_, _ = w.WriteString(r.quoteIndent())
		}
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderString(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.String)
		_, _ = w.Write(n.Value)
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderCodeSpan(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(r.style(ansiCyan))
	} else {
		_, _ = w.WriteString(r.style(ansiReset))
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderEmphasis(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Emphasis)
	code := ansiDim
	if n.Level == 2 {
		code = ansiBold
	}
	if entering {
		_, _ = w.WriteString(r.style(code))
	} else {
		_, _ = w.WriteString(r.style(ansiReset))
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderLink(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		var dest []byte
		switch n := node.(type) {
		case *ast.Link:
			dest = n.Destination
		case *ast.Image:
			dest = n.Destination
		}
		if len(dest) > 0 {
			_, _ = fmt.Fprintf(w, " (%s)", dest)
		}
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderAutoLink(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.AutoLink)
		_, _ = w.Write(n.URL(source))
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		n := node.(*ast.RawHTML)
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			_, _ = w.Write(seg.Value(source))
		}
	}
	return ast.WalkContinue, nil
}

func (r *ansiRenderer) renderStrikethrough(w util.BufWriter, _ []byte, _ ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(r.style(ansiStrike))
	} else {
		_, _ = w.WriteString(r.style(ansiReset))
	}
	return ast.WalkContinue, nil
}
