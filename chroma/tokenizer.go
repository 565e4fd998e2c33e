// Package chroma provides syntax highlighting for diff lines using the chroma library.
package chroma

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/gitsage/gitsage"
)

// Compile-time interface verification.
var (
	_ gitsage.Tokenizer        = (*Tokenizer)(nil)
	_ gitsage.LanguageDetector = (*LanguageDetector)(nil)
)

// Palette maps chroma token categories to styles.
type Palette map[chroma.TokenType]gitsage.Style

// DefaultPalette is loosely based on the One Dark theme.
func DefaultPalette() Palette {
	builtin := gitsage.Style{Foreground: "#e5c07b"}
	function := gitsage.Style{Foreground: "#61afef"}
	// Name sub-types share the Name sub-category, so related types are
	// listed explicitly.
	return Palette{
		chroma.Keyword:           {Foreground: "#c678dd", Bold: true},
		chroma.Comment:           {Foreground: "#5c6370"},
		chroma.String:            {Foreground: "#98c379"},
		chroma.Number:            {Foreground: "#d19a66"},
		chroma.Operator:          {Foreground: "#56b6c2"},
		chroma.NameBuiltin:       builtin,
		chroma.NameBuiltinPseudo: builtin,
		chroma.NameFunction:      function,
		chroma.NameFunctionMagic: function,
		chroma.Name:              {Foreground: "#e06c75"},
	}
}

// Tokenizer extracts syntax tokens using chroma.
type Tokenizer struct {
	palette Palette
}

// NewTokenizer creates a tokenizer using palette, or DefaultPalette when nil.
func NewTokenizer(palette Palette) *Tokenizer {
	if palette == nil {
		palette = DefaultPalette()
	}
	return &Tokenizer{palette: palette}
}

// Tokenize splits source into styled tokens for the given language.
// Returns nil if the language is not supported or an error occurs.
// Returns an empty slice for empty source.
func (t *Tokenizer) Tokenize(language, source string) []gitsage.Token {
	if source == "" {
		return []gitsage.Token{}
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		return nil
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return nil
	}

	var tokens []gitsage.Token
	for token := iterator(); token != chroma.EOF; token = iterator() {
		tokens = append(tokens, gitsage.Token{
			Text:  token.Value,
			Style: t.style(token.Type),
		})
	}
	return tokens
}

// style resolves the most specific palette entry: exact type, then
// sub-category, then category.
func (t *Tokenizer) style(tt chroma.TokenType) gitsage.Style {
	for _, candidate := range []chroma.TokenType{tt, tt.SubCategory(), tt.Category()} {
		if s, ok := t.palette[candidate]; ok {
			return s
		}
	}
	return gitsage.Style{}
}

// LanguageDetector resolves chroma lexer names from file names.
type LanguageDetector struct{}

// NewLanguageDetector creates a new LanguageDetector.
func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{}
}

// DetectFromPath returns the chroma lexer name for path, or "" when no
// lexer matches. Diff prefixes "a/" and "b/" are ignored.
func (d *LanguageDetector) DetectFromPath(path string) string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "a/"), "b/")
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	return lexer.Config().Name
}
