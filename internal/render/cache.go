package render

import (
	"sync"

	"github.com/charmbracelet/glamour"
)

// minWidth keeps glamour from wrapping every word on tiny terminals
const minWidth = 20

// renderers holds one pool of TermRenderers per distinct Options value.
// Options is comparable, so it is the map key. A TermRenderer is not safe
// for concurrent use; each caller borrows one and gives it back.
var renderers sync.Map // Options -> *sync.Pool

// normalize clamps values that would make equal output use separate pools
func normalize(opts Options) Options {
	if opts.Width < minWidth {
		opts.Width = minWidth
	}
	if opts.Style == "" {
		opts.Style = StyleFor("")
	}
	return opts
}

func poolFor(opts Options) *sync.Pool {
	if p, ok := renderers.Load(opts); ok {
		return p.(*sync.Pool)
	}
	p, _ := renderers.LoadOrStore(opts, &sync.Pool{})
	return p.(*sync.Pool)
}

// borrow takes a renderer for opts from its pool, building one when the
// pool is empty. The returned func gives it back.
func borrow(opts Options) (*glamour.TermRenderer, func(), error) {
	opts = normalize(opts)
	pool := poolFor(opts)
	if r, ok := pool.Get().(*glamour.TermRenderer); ok {
		return r, func() { pool.Put(r) }, nil
	}
	r, err := newRenderer(opts)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { pool.Put(r) }, nil
}

func newRenderer(opts Options) (*glamour.TermRenderer, error) {
	ro := []glamour.TermRendererOption{
		glamour.WithStylePath(opts.Style),
		glamour.WithWordWrap(opts.Width),
		glamour.WithTableWrap(opts.TableWrap),
		glamour.WithInlineTableLinks(opts.InlineTableLinks),
	}
	if opts.EnableEmoji {
		ro = append(ro, glamour.WithEmoji())
	}
	if opts.PreserveNewLines {
		ro = append(ro, glamour.WithPreservedNewLines())
	}
	return glamour.NewTermRenderer(ro...)
}

// ClearCache drops all pooled renderers
func ClearCache() {
	renderers.Range(func(k, _ any) bool {
		renderers.Delete(k)
		return true
	})
}

// CacheSize returns the number of distinct option sets seen since the last clear
func CacheSize() int {
	n := 0
	renderers.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
