// Package segmenter finds the best division of a token into a sequence of
// known sub-spellings, so unsegmented compound words ("pianokonsertto")
// resolve through their parts. Only spelling membership is checked; there is
// no grammar.
package segmenter

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/babelindex/babelindex/pkg/metrics"
)

// Spellings answers membership probes against the set of known indexable
// spellings. Satisfied by the prefix cache.
type Spellings interface {
	Contains(ctx context.Context, spelling string) (bool, error)
}

// Config bounds the search for divisions. The minimum part length floor is
// MinFirstPartLen for the leftmost cut and MinPartLen for every cut after
// it, which stops cascades of degenerate one-letter parts in the middle and
// tail of a word while still letting a short whole token match on its own.
type Config struct {
	MinFirstPartLen int
	MinPartLen      int
	MaxParts        int
}

// DefaultConfig mirrors the engine defaults: any-length first part, three
// characters for subsequent parts, at most four parts.
func DefaultConfig() Config {
	return Config{MinFirstPartLen: 1, MinPartLen: 3, MaxParts: 4}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinFirstPartLen <= 0 {
		c.MinFirstPartLen = d.MinFirstPartLen
	}
	if c.MinPartLen <= 0 {
		c.MinPartLen = d.MinPartLen
	}
	if c.MaxParts <= 0 {
		c.MaxParts = d.MaxParts
	}
	return c
}

// Division is an ordered sequence of known sub-spellings whose concatenation
// equals the segmented token.
type Division []string

func (d Division) String() string {
	return strings.Join(d, "+")
}

// minPartLen returns the length in runes of the division's shortest part.
func (d Division) minPartLen() int {
	min := 0
	for i, part := range d {
		n := len([]rune(part))
		if i == 0 || n < min {
			min = n
		}
	}
	return min
}

// Segmenter enumerates and ranks candidate divisions of a token.
type Segmenter struct {
	spellings Spellings
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a Segmenter probing the given spelling set. The metrics
// argument may be nil.
func New(spellings Spellings, cfg Config, m *metrics.Metrics) *Segmenter {
	return &Segmenter{
		spellings: spellings,
		cfg:       cfg.withDefaults(),
		logger:    slog.Default().With("component", "segmenter"),
		metrics:   m,
	}
}

// Segment returns the best division of token, or nil when no division of
// known spellings exists. The best division has the fewest parts; among
// equal part counts the one whose shortest part is longest wins, with
// remaining ties broken by enumeration order.
func (s *Segmenter) Segment(ctx context.Context, token string) (Division, error) {
	divisions, err := s.Divisions(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(divisions) == 0 {
		if s.metrics != nil {
			s.metrics.SegmentationsTotal.WithLabelValues("no_match").Inc()
		}
		return nil, nil
	}
	SortDivisions(divisions)
	best := divisions[0]
	if s.metrics != nil {
		if len(best) == 1 {
			s.metrics.SegmentationsTotal.WithLabelValues("whole").Inc()
		} else {
			s.metrics.SegmentationsTotal.WithLabelValues("compound").Inc()
		}
		s.metrics.SegmentationDepth.Observe(float64(len(best)))
	}
	s.logger.Debug("token segmented", "token", token, "division", best.String(), "candidates", len(divisions))
	return best, nil
}

// Divisions enumerates every valid division of token depth-first, trying
// prefix lengths from the configured minimum upwards at each cut.
func (s *Segmenter) Divisions(ctx context.Context, token string) ([]Division, error) {
	return s.divide(ctx, []rune(token), s.cfg.MinFirstPartLen, s.cfg.MaxParts)
}

// SortDivisions ranks divisions in place: fewest parts first, then the
// largest minimum part length. The sort is stable, so enumeration order
// breaks remaining ties.
func SortDivisions(divisions []Division) {
	sort.SliceStable(divisions, func(i, j int) bool {
		if len(divisions[i]) != len(divisions[j]) {
			return len(divisions[i]) < len(divisions[j])
		}
		return divisions[i].minPartLen() > divisions[j].minPartLen()
	})
}

func (s *Segmenter) divide(ctx context.Context, token []rune, minLen, maxParts int) ([]Division, error) {
	if maxParts <= 0 || len(token) == 0 || minLen > len(token) {
		return nil, nil
	}
	var out []Division
	for i := minLen; i <= len(token); i++ {
		prefix := string(token[:i])
		known, err := s.spellings.Contains(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if !known {
			continue
		}
		if i == len(token) {
			out = append(out, Division{prefix})
			continue
		}
		subs, err := s.divide(ctx, token[i:], s.cfg.MinPartLen, maxParts-1)
		if err != nil {
			return nil, err
		}
		for _, sub := range subs {
			division := make(Division, 0, len(sub)+1)
			division = append(division, prefix)
			division = append(division, sub...)
			out = append(out, division)
		}
	}
	return out, nil
}
