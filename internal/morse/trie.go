// internal/morse/trie.go

// Package morse implements Morse code decoding of two-state signal timings.
package morse

import (
	"math/bits"
	"strings"
)

// Node addresses a position in a Trie.
// Nodes are heap indices: Root is 1, the dot (left) child of i is 2i and the
// dash (right) child is 2i+1, so the parent of i is i/2.
type Node uint8

const (
	// Root is the start position of every symbol. It carries no symbol.
	Root Node = 1

	// maxDepth is the longest code the trie can hold.
	maxDepth = 4
	trieSize = 1 << (maxDepth + 1)

	dot  = '.'
	dash = '-'
)

// standardLetters lists the International Morse letters in breadth-first
// order so every parent is inserted before its children.
var standardLetters = []struct {
	code   string
	symbol rune
}{
	{".", 'E'}, {"-", 'T'},
	{"..", 'I'}, {".-", 'A'}, {"-.", 'N'}, {"--", 'M'},
	{"...", 'S'}, {"..-", 'U'}, {".-.", 'R'}, {".--", 'W'},
	{"-..", 'D'}, {"-.-", 'K'}, {"--.", 'G'}, {"---", 'O'},
	{"....", 'H'}, {"...-", 'V'}, {"..-.", 'F'}, {".-..", 'L'},
	{".--.", 'P'}, {".---", 'J'}, {"-...", 'B'}, {"-..-", 'X'},
	{"-.-.", 'C'}, {"-.--", 'Y'}, {"--..", 'Z'}, {"--.-", 'Q'},
}

// StandardAlphabet is the shared, read-only letter trie.
var StandardAlphabet = BuildStandardAlphabet()

// Trie is a binary lookup tree where each dot steps left and each dash steps
// right. A Trie is never modified after construction, so one instance may be
// shared by any number of decoders without locking.
type Trie struct {
	symbols [trieSize]rune
	present [trieSize]bool
}

// BuildStandardAlphabet constructs the letter-only International Morse trie.
// O (---) is a leaf, and U, R and W have a single child.
func BuildStandardAlphabet() *Trie {
	t := &Trie{}
	t.present[Root] = true
	for _, l := range standardLetters {
		t.insert(l.code, l.symbol)
	}
	return t
}

// insert places symbol at the end of code. The parent must already exist.
func (t *Trie) insert(code string, symbol rune) {
	n := Root
	for i := 0; i < len(code); i++ {
		if !t.present[n] {
			panic("morse: parent of " + code + " not inserted")
		}
		n = child(n, code[i] == dot)
	}
	t.symbols[n] = symbol
	t.present[n] = true
}

func child(n Node, isDot bool) Node {
	if isDot {
		return n * 2
	}
	return n*2 + 1
}

func (t *Trie) valid(n Node) bool {
	return n >= Root && int(n) < trieSize && t.present[n]
}

// Step moves one element from the given node: left on a dot, right on a dash.
// When the requested child does not exist the walk starts over at Root and
// the partial symbol is dropped. Step never fails.
func (t *Trie) Step(from Node, isDot bool) Node {
	if !t.valid(from) || int(from)*2 >= trieSize {
		return Root
	}
	next := child(from, isDot)
	if !t.present[next] {
		return Root
	}
	return next
}

// IsRoot reports whether n is the start position.
func (t *Trie) IsRoot(n Node) bool {
	return n == Root
}

// Left returns the dot child of n, if any.
func (t *Trie) Left(n Node) (Node, bool) {
	return t.childOf(n, true)
}

// Right returns the dash child of n, if any.
func (t *Trie) Right(n Node) (Node, bool) {
	return t.childOf(n, false)
}

func (t *Trie) childOf(n Node, isDot bool) (Node, bool) {
	if !t.valid(n) || int(n)*2 >= trieSize {
		return 0, false
	}
	c := child(n, isDot)
	return c, t.present[c]
}

// Symbol returns the letter at n. Root and unknown nodes have none.
func (t *Trie) Symbol(n Node) (rune, bool) {
	if n == Root || !t.valid(n) {
		return 0, false
	}
	return t.symbols[n], true
}

// Depth is the number of elements between Root and n.
func (t *Trie) Depth(n Node) int {
	if n == 0 {
		return 0
	}
	return bits.Len8(uint8(n)) - 1
}

// Code spells the dot/dash path from Root to n, e.g. "..-" for U.
func (t *Trie) Code(n Node) string {
	depth := t.Depth(n)
	var b strings.Builder
	b.Grow(depth)
	for i := depth - 1; i >= 0; i-- {
		if n&(1<<i) == 0 {
			b.WriteByte(dot)
		} else {
			b.WriteByte(dash)
		}
	}
	return b.String()
}

// Lookup walks code without the reset fallback and returns the letter found.
func (t *Trie) Lookup(code string) (rune, bool) {
	if code == "" || len(code) > maxDepth {
		return 0, false
	}
	n := Root
	for i := 0; i < len(code); i++ {
		var ok bool
		switch code[i] {
		case dot:
			n, ok = t.Left(n)
		case dash:
			n, ok = t.Right(n)
		}
		if !ok {
			return 0, false
		}
	}
	return t.Symbol(n)
}

// Encode returns the Morse code for r (case-insensitive).
func (t *Trie) Encode(r rune) (string, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	for n := Root + 1; int(n) < trieSize; n++ {
		if t.present[n] && t.symbols[n] == r {
			return t.Code(n), true
		}
	}
	return "", false
}

// Letters returns every symbol in breadth-first (shortest code first) order.
func (t *Trie) Letters() []rune {
	var out []rune
	for n := Root + 1; int(n) < trieSize; n++ {
		if t.present[n] {
			out = append(out, t.symbols[n])
		}
	}
	return out
}
