// Package passphrase generates the multi-word secrets that allow a stored
// file to be deleted without knowing its id.
package passphrase

import (
	"bufio"
	"bytes"
	"crypto/rand"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
)

// Words is the number of words in a generated passphrase.
const Words = 12

// ErrEmptyWordlist is returned when a wordlist has no usable entries.
var ErrEmptyWordlist = errors.New("passphrase wordlist is empty")

//go:embed wordlist.txt
var defaultWordlist []byte

// Generator draws passphrases from a fixed wordlist. It is safe for
// concurrent use.
type Generator struct {
	words []string
	rand  io.Reader
}

// New returns a Generator over words. Blank entries are dropped.
func New(words []string) (*Generator, error) {
	clean := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			clean = append(clean, w)
		}
	}
	if len(clean) == 0 {
		return nil, ErrEmptyWordlist
	}
	return &Generator{words: clean, rand: rand.Reader}, nil
}

// Load reads a newline delimited wordlist from path. An empty path
// selects the wordlist compiled into the binary.
func Load(path string) (*Generator, error) {
	if path == "" {
		return Parse(bytes.NewReader(defaultWordlist))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one word per line from r.
func Parse(r io.Reader) (*Generator, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		words = append(words, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	return New(words)
}

// Size returns the number of words in the list.
func (g *Generator) Size() int {
	return len(g.words)
}

// Contains reports whether w is in the wordlist.
func (g *Generator) Contains(w string) bool {
	for _, x := range g.words {
		if x == w {
			return true
		}
	}
	return false
}

// Generate returns Words words chosen uniformly with replacement, joined
// by single spaces.
func (g *Generator) Generate() (string, error) {
	n := big.NewInt(int64(len(g.words)))
	phrase := make([]string, Words)
	for i := range phrase {
		idx, err := rand.Int(g.rand, n)
		if err != nil {
			return "", fmt.Errorf("generate passphrase: %w", err)
		}
		phrase[i] = g.words[idx.Int64()]
	}
	return strings.Join(phrase, " "), nil
}
