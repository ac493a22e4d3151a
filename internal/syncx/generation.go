package syncx

import "sync/atomic"

// Token identifies one issued request within a Generation.
type Token uint64

// Generation hands out monotonically increasing tokens so a result can be
// discarded when a newer request of the same kind was issued after it.
type Generation struct {
	latest atomic.Uint64
}

// Issue returns a token newer than every token issued before it.
func (g *Generation) Issue() Token {
	return Token(g.latest.Add(1))
}

// IsCurrent reports whether t is the most recently issued token.
func (g *Generation) IsCurrent(t Token) bool {
	return uint64(t) == g.latest.Load()
}
