// Package universe assigns stable dense indices to the item names observed in
// a time window.
package universe

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/novelty/internal/corpus"
)

const DefaultCompactEvery = 10_000

var (
	ErrEmptyUniverse = errors.New("universe has no items")
	ErrMismatch      = errors.New("matrix was built against a different universe")
)

// Version identifies the configuration a universe was built for. Matrices are
// versioned by the same values.
type Version struct {
	Variable string `json:"variable"`
	Window   string `json:"window"`
	Weighted bool   `json:"weighted"`
	KeepDiag bool   `json:"keep_diag"`
}

// Universe is an immutable bijection between item names and indices.
type Universe struct {
	Version     Version        `json:"version"`
	NameToIndex map[string]int `json:"name_to_index"`
	IndexToName []string       `json:"index_to_name"`
	Fingerprint uint64         `json:"fingerprint"`
}

// New builds a universe from an arbitrary list of names. Duplicates are
// removed and indices follow sorted-name order.
func New(version Version, names []string) *Universe {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if len(sorted) > 0 && sorted[0] == "" {
		sorted = sorted[1:]
	}

	u := &Universe{
		Version:     version,
		NameToIndex: make(map[string]int, len(sorted)),
		IndexToName: sorted,
	}
	for i, name := range sorted {
		u.NameToIndex[name] = i
	}
	u.Fingerprint = fingerprint(sorted)
	return u
}

func fingerprint(sorted []string) uint64 {
	h := xxhash.New()
	for _, name := range sorted {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Len returns the number of items.
func (u *Universe) Len() int {
	return len(u.IndexToName)
}

// Index returns the index of name.
func (u *Universe) Index(name string) (int, bool) {
	i, ok := u.NameToIndex[name]
	return i, ok
}

// Name returns the name at index i.
func (u *Universe) Name(i int) string {
	return u.IndexToName[i]
}

// Check returns ErrMismatch unless fingerprint identifies this universe.
func (u *Universe) Check(fingerprint uint64) error {
	if fingerprint != u.Fingerprint {
		return fmt.Errorf("%w: matrix %x, universe %x", ErrMismatch, fingerprint, u.Fingerprint)
	}
	return nil
}

// Indices maps names to indices, reporting the names that are unknown.
func (u *Universe) Indices(names []string) (indices []int, missing []string) {
	indices = make([]int, 0, len(names))
	for _, name := range names {
		if i, ok := u.NameToIndex[name]; ok {
			indices = append(indices, i)
		} else {
			missing = append(missing, name)
		}
	}
	return indices, missing
}

// Restore rebuilds the lookup map and checks the fingerprint after a universe
// was decoded from an artifact.
func (u *Universe) Restore() error {
	if u.NameToIndex == nil || len(u.NameToIndex) != len(u.IndexToName) {
		u.NameToIndex = make(map[string]int, len(u.IndexToName))
		for i, name := range u.IndexToName {
			u.NameToIndex[name] = i
		}
	}
	if fp := fingerprint(u.IndexToName); fp != u.Fingerprint {
		return fmt.Errorf("universe fingerprint mismatch: stored %s, computed %s",
			strconv.FormatUint(u.Fingerprint, 16), strconv.FormatUint(fp, 16))
	}
	return nil
}

type Options struct {
	Version      Version
	CompactEvery int
	RequireYear  bool
}

type Option func(*Options)

func WithVersion(v Version) Option {
	return func(o *Options) {
		o.Version = v
	}
}

func WithCompactEvery(n int) Option {
	return func(o *Options) {
		o.CompactEvery = n
	}
}

// WithRequireYear drops items that carry no creation year, as needed by the
// null model.
func WithRequireYear(required bool) Option {
	return func(o *Options) {
		o.RequireYear = required
	}
}

// Build streams papers and returns the sorted universe of their item names.
// Items lacking a required sub-field are skipped silently.
func Build(ctx context.Context, papers iter.Seq[corpus.Paper], opts ...Option) (*Universe, error) {
	o := Options{CompactEvery: DefaultCompactEvery}
	for _, opt := range opts {
		opt(&o)
	}
	if o.CompactEvery <= 0 {
		o.CompactEvery = DefaultCompactEvery
	}

	var (
		compacted []string
		working   = make(map[string]struct{})
		records   int
		dropped   int
	)

	compact := func() {
		if len(working) == 0 {
			return
		}
		batch := make([]string, 0, len(working))
		for name := range working {
			batch = append(batch, name)
		}
		slices.Sort(batch)
		compacted = mergeSorted(compacted, batch)
		clear(working)
	}

	for paper := range papers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, it := range paper.Items {
			if it.Name == "" || (o.RequireYear && it.Year == nil) {
				dropped++
				continue
			}
			working[it.Name] = struct{}{}
		}
		records++
		if records%o.CompactEvery == 0 {
			compact()
		}
	}
	compact()

	if len(compacted) == 0 {
		return nil, ErrEmptyUniverse
	}

	log.Debug().Int("records", records).Int("items", len(compacted)).Int("dropped", dropped).
		Str("variable", o.Version.Variable).Msg("universe built")

	return New(o.Version, compacted), nil
}

// mergeSorted merges two sorted, duplicate-free slices.
func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// FromPapers is a convenience wrapper over Build for in-memory slices.
func FromPapers(ctx context.Context, papers []corpus.Paper, opts ...Option) (*Universe, error) {
	return Build(ctx, slices.Values(papers), opts...)
}
