package morse

import (
	"testing"
)

// letterPaths is the documented dot/dash path for every supported letter
var letterPaths = map[rune]string{
	'E': ".", 'T': "-",
	'I': "..", 'A': ".-", 'N': "-.", 'M': "--",
	'S': "...", 'U': "..-", 'R': ".-.", 'W': ".--",
	'D': "-..", 'K': "-.-", 'G': "--.", 'O': "---",
	'H': "....", 'V': "...-", 'F': "..-.", 'L': ".-..",
	'P': ".--.", 'J': ".---", 'B': "-...", 'X': "-..-",
	'C': "-.-.", 'Y': "-.--", 'Z': "--..", 'Q': "--.-",
}

func walk(trie *Trie, code string) Node {
	n := Root
	for _, c := range code {
		n = trie.Step(n, c == '.')
	}
	return n
}

func TestBuildStandardAlphabet_LetterPaths(t *testing.T) {
	trie := BuildStandardAlphabet()

	for letter, code := range letterPaths {
		t.Run(string(letter), func(t *testing.T) {
			n := walk(trie, code)
			got, ok := trie.Symbol(n)
			if !ok {
				t.Fatalf("path %q ended at a node without a symbol", code)
			}
			if got != letter {
				t.Errorf("path %q = %c, want %c", code, got, letter)
			}
			if trie.Code(n) != code {
				t.Errorf("Code() = %q, want %q", trie.Code(n), code)
			}
			if trie.Depth(n) != len(code) {
				t.Errorf("Depth() = %d, want %d", trie.Depth(n), len(code))
			}
		})
	}
}

func TestBuildStandardAlphabet_LetterCount(t *testing.T) {
	letters := BuildStandardAlphabet().Letters()
	if len(letters) != 26 {
		t.Fatalf("Letters() returned %d symbols, want 26", len(letters))
	}
	if letters[0] != 'E' || letters[1] != 'T' {
		t.Errorf("Letters() should start with E, T; got %c, %c", letters[0], letters[1])
	}
}

func TestBuildStandardAlphabet_Deterministic(t *testing.T) {
	a := BuildStandardAlphabet()
	b := BuildStandardAlphabet()
	if *a != *b {
		t.Error("two builds produced different tries")
	}
	if *a != *StandardAlphabet {
		t.Error("StandardAlphabet differs from a fresh build")
	}
}

func TestTrie_RootHasNoSymbol(t *testing.T) {
	trie := BuildStandardAlphabet()
	if _, ok := trie.Symbol(Root); ok {
		t.Error("Symbol(Root) should report no symbol")
	}
	if !trie.IsRoot(Root) {
		t.Error("IsRoot(Root) = false")
	}
	if trie.Code(Root) != "" {
		t.Errorf("Code(Root) = %q, want empty", trie.Code(Root))
	}
}

func TestTrie_IsRoot_OnlyForRoot(t *testing.T) {
	trie := BuildStandardAlphabet()
	for _, code := range letterPaths {
		if trie.IsRoot(walk(trie, code)) {
			t.Errorf("IsRoot(%q) = true", code)
		}
	}
}

func TestTrie_MissingChildrenFallBackToRoot(t *testing.T) {
	trie := BuildStandardAlphabet()

	tests := []struct {
		name string
		code string
	}{
		{"O is a leaf (dot)", "---."},
		{"O is a leaf (dash)", "----"},
		{"U has no dash child", "..--"},
		{"R has no dash child", ".-.-"},
		{"five elements", "....."},
		{"depth four dash", "--.--"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if n := walk(trie, tt.code); n != Root {
				t.Errorf("walk(%q) = %v (%q), want Root", tt.code, n, trie.Code(n))
			}
		})
	}
}

func TestTrie_Step_IsTotal(t *testing.T) {
	trie := BuildStandardAlphabet()

	// every possible node value, including ones that are not in the trie
	for n := 0; n < 256; n++ {
		for _, isDot := range []bool{true, false} {
			next := trie.Step(Node(n), isDot)
			if next != Root {
				if _, ok := trie.Symbol(next); !ok {
					t.Fatalf("Step(%d, %v) = %d, which is neither Root nor a letter", n, isDot, next)
				}
			}
		}
	}
}

func TestTrie_LeftRight(t *testing.T) {
	trie := BuildStandardAlphabet()

	e, ok := trie.Left(Root)
	if !ok {
		t.Fatal("Left(Root) missing")
	}
	if s, _ := trie.Symbol(e); s != 'E' {
		t.Errorf("Left(Root) = %c, want E", s)
	}

	o := walk(trie, "---")
	if _, ok := trie.Left(o); ok {
		t.Error("O should have no left child")
	}
	if _, ok := trie.Right(o); ok {
		t.Error("O should have no right child")
	}

	u := walk(trie, "..-")
	if _, ok := trie.Left(u); !ok {
		t.Error("U should have a left child (F)")
	}
	if _, ok := trie.Right(u); ok {
		t.Error("U should have no right child")
	}
}

func TestTrie_Lookup(t *testing.T) {
	trie := BuildStandardAlphabet()

	for letter, code := range letterPaths {
		got, ok := trie.Lookup(code)
		if !ok || got != letter {
			t.Errorf("Lookup(%q) = %c, %v; want %c, true", code, got, ok, letter)
		}
	}

	for _, code := range []string{"", "..--", ".....", "-x", "---."} {
		if got, ok := trie.Lookup(code); ok {
			t.Errorf("Lookup(%q) = %c, want no symbol", code, got)
		}
	}
}

func TestTrie_Encode(t *testing.T) {
	trie := BuildStandardAlphabet()

	tests := []struct {
		in   rune
		want string
		ok   bool
	}{
		{'S', "...", true},
		{'o', "---", true},
		{'Q', "--.-", true},
		{'5', "", false},
		{' ', "", false},
	}
	for _, tt := range tests {
		got, ok := trie.Encode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Encode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
