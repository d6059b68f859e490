package fuzztests

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// seedLimit caps each testdata program added to the corpus.
const seedLimit = 64 << 10

var languageSeeds = []string{
	"def sq(x) x*x; sq(4);",
	"extern putchard(c); for i = 0, i < 5 in putchard(42);",
	"def binary| 5 (a b) if a then 1 else if b then 1 else 0; 1 | 0;",
	"def unary!(v) if v then 0 else 1; !0;",
	"var a = 1, b = 2 in a = b + 1;",
	"def vector id(vector v) v; var vector v[8] in map(sq, id(v));",
	"def avg(a b) (a+b)*0.5; var vector x[4], vector y[4] in map(avg, x, y);",
	"def f(x) y; ) ; 1.2.3 + ;",
}

// addCorpusSeeds feeds the inline seeds and every testdata/*.k program.
func addCorpusSeeds(f *testing.F) {
	for _, s := range languageSeeds {
		f.Add([]byte(s))
	}
	progs, _ := filepath.Glob(filepath.Join("..", "..", "testdata", "*.k"))
	for _, path := range progs {
		src, err := os.ReadFile(path) // #nosec G304 -- repository testdata
		if err != nil {
			continue
		}
		f.Add(slices.Clone(src[:min(len(src), seedLimit)]))
	}
}
