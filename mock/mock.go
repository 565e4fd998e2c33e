// Package mock provides function-field test doubles for gitsage interfaces.
package mock

import (
	"context"

	"github.com/gitsage/gitsage"
)

var _ gitsage.Engine = (*Engine)(nil)

// Engine is a mock implementation of gitsage.Engine.
type Engine struct {
	DiffFn func(ctx context.Context, req gitsage.DiffRequest) (*gitsage.RawDiff, error)
}

func (m *Engine) Diff(ctx context.Context, req gitsage.DiffRequest) (*gitsage.RawDiff, error) {
	return m.DiffFn(ctx, req)
}

var _ gitsage.Parser = (*Parser)(nil)

// Parser is a mock implementation of gitsage.Parser.
type Parser struct {
	ParseFn func(raw *gitsage.RawDiff) (*gitsage.DiffOutput, error)
}

func (m *Parser) Parse(raw *gitsage.RawDiff) (*gitsage.DiffOutput, error) {
	return m.ParseFn(raw)
}

var _ gitsage.Applier = (*Applier)(nil)

// Applier is a mock implementation of gitsage.Applier.
type Applier struct {
	ApplyFn func(ctx context.Context, patch string, opts gitsage.ApplyOptions) error
}

func (m *Applier) Apply(ctx context.Context, patch string, opts gitsage.ApplyOptions) error {
	return m.ApplyFn(ctx, patch, opts)
}
