// Package reconcile maps an extracted field value back to the bounding
// box(es) in the source pages that most plausibly produced it, using a
// cascade of matching strategies.
package reconcile

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/carelane/chartscan/internal/config"
	"github.com/carelane/chartscan/internal/model"
)

// bboxTolerance is the pixel slack when deciding two blocks are duplicates.
const bboxTolerance = 10.0

// minContextWords is the smallest context a significant-word block may have.
const minContextWords = 3

// Reconciler finds source positions for extracted field values.
type Reconciler struct {
	cfg config.ReconcileConfig
}

// New creates a Reconciler.
func New(cfg config.ReconcileConfig) *Reconciler {
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = 4
	}
	if cfg.PhraseWindow <= 0 {
		cfg.PhraseWindow = 20
	}
	if cfg.ContextRadius <= 0 {
		cfg.ContextRadius = 150
	}
	if cfg.ClusterRadius <= 0 {
		cfg.ClusterRadius = 120
	}
	return &Reconciler{cfg: cfg}
}

// FindPositions returns the best source locations for value, ordered
// best-first and capped. Positions are read-only input; the word list is
// never mutated. An empty value returns nil without running any strategy.
func (r *Reconciler) FindPositions(positions []model.WordPosition, value string) []model.MatchBlock {
	needle := strings.TrimSpace(value)
	if needle == "" || len(positions) == 0 {
		return nil
	}

	pages := splitPages(positions)

	blocks := r.phraseMatch(pages, needle)
	if len(blocks) == 0 {
		blocks = r.sequenceMatch(pages, needle)
	}
	if len(blocks) == 0 {
		blocks = r.significantWordMatch(pages, needle)
	}
	if len(blocks) == 0 {
		return nil
	}

	blocks = dedupeBlocks(blocks)
	sortBlocks(blocks)
	if len(blocks) > r.cfg.MaxBlocks {
		blocks = blocks[:r.cfg.MaxBlocks]
	}

	zap.L().Debug("reconcile: matched",
		zap.String("strategy", string(blocks[0].Strategy)),
		zap.Int("blocks", len(blocks)),
	)
	return blocks
}

// phraseMatch slides a window over each page's words in reading order and
// tests case-insensitive containment of the whole value. The context block
// seeds from the minimal word span that produced the hit, not the whole
// window, so the block always covers and quotes the matched words.
func (r *Reconciler) phraseMatch(pages map[int][]model.WordPosition, value string) []model.MatchBlock {
	needle := strings.ToLower(value)
	window := r.cfg.PhraseWindow

	var blocks []model.MatchBlock
	for _, words := range pages {
		for start := 0; start < len(words); start++ {
			span := phraseSpan(words, start, window, needle)
			if span < 0 {
				continue
			}

			// Trim leading words the containment does not need.
			lo := start
			for lo+1 < span && windowContains(words[lo+1:span], needle) {
				lo++
			}

			seed := words[lo:span]
			context := r.nearbyWords(words, seed, r.cfg.ContextRadius)
			if block, ok := buildBlock(context, model.StrategyPhrase); ok {
				blocks = append(blocks, block)
			}

			// Skip past this span; overlapping re-hits only produce
			// near-duplicate blocks.
			start = span - 1
		}
	}
	return blocks
}

// phraseSpan grows a word run from start until its joined text contains
// needle, returning the exclusive end index of the minimal run, or -1 if no
// run within the window limit contains it.
func phraseSpan(words []model.WordPosition, start, window int, needle string) int {
	limit := start + window
	if limit > len(words) {
		limit = len(words)
	}

	var b strings.Builder
	for i := start; i < limit; i++ {
		if i > start {
			b.WriteString(" ")
		}
		b.WriteString(strings.ToLower(words[i].Text))
		if strings.Contains(b.String(), needle) {
			return i + 1
		}
	}
	return -1
}

// sequenceMatch looks for spatial clusters containing at least two distinct
// significant words of the value. It recovers multi-token values that OCR
// fragmented or reordered slightly.
func (r *Reconciler) sequenceMatch(pages map[int][]model.WordPosition, value string) []model.MatchBlock {
	sig := SignificantWords(value)
	if len(sig) < 2 {
		return nil
	}

	var blocks []model.MatchBlock
	for _, words := range pages {
		hits := sigOccurrences(words, sig)
		for i, h := range hits {
			cluster := []model.WordPosition{h.word}
			seen := map[string]bool{h.sig: true}
			for j, other := range hits {
				if i == j {
					continue
				}
				if centerDistance(h.word, other.word) <= r.cfg.ClusterRadius {
					cluster = append(cluster, other.word)
					seen[other.sig] = true
				}
			}
			if len(seen) < 2 {
				continue
			}
			context := r.nearbyWords(words, cluster, r.cfg.ContextRadius)
			if block, ok := buildBlock(context, model.StrategySequence); ok {
				blocks = append(blocks, block)
			}
		}
	}
	return blocks
}

// significantWordMatch falls back to individual significant-word hits, each
// expanded into a contextual block. The proximity radius doubles once when
// the first pass yields too little context.
func (r *Reconciler) significantWordMatch(pages map[int][]model.WordPosition, value string) []model.MatchBlock {
	sig := SignificantWords(value)
	if len(sig) == 0 {
		return nil
	}

	var blocks []model.MatchBlock
	for _, words := range pages {
		for _, h := range sigOccurrences(words, sig) {
			context := r.nearbyWords(words, []model.WordPosition{h.word}, r.cfg.ContextRadius)
			if len(context) < minContextWords {
				context = r.nearbyWords(words, []model.WordPosition{h.word}, r.cfg.ContextRadius*2)
			}
			if len(context) < minContextWords {
				continue
			}
			if block, ok := buildBlock(context, model.StrategySignificantWord); ok {
				blocks = append(blocks, block)
			}
		}
	}
	return blocks
}

type sigHit struct {
	word model.WordPosition
	sig  string
}

// sigOccurrences finds words matching any significant word, exact or
// substring, case-insensitive.
func sigOccurrences(words []model.WordPosition, sig []string) []sigHit {
	var hits []sigHit
	for _, w := range words {
		token := strings.ToLower(w.Text)
		for _, s := range sig {
			if token == s || strings.Contains(token, s) {
				hits = append(hits, sigHit{word: w, sig: s})
				break
			}
		}
	}
	return hits
}

// windowContains concatenates window text and tests containment.
func windowContains(window []model.WordPosition, needle string) bool {
	var b strings.Builder
	for i, w := range window {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.ToLower(w.Text))
	}
	return strings.Contains(b.String(), needle)
}

// nearbyWords returns page words within radius of the seed envelope, in
// reading order. Distance is measured to the envelope rectangle, not its
// center, so every seed word sits at distance zero and is always part of
// its own context regardless of how wide the seed spans.
func (r *Reconciler) nearbyWords(words, seed []model.WordPosition, radius float64) []model.WordPosition {
	if len(seed) == 0 {
		return nil
	}
	minX, minY, maxX, maxY := envelope(seed)

	var out []model.WordPosition
	for _, w := range words {
		wx := w.X + w.Width/2
		wy := w.Y + w.Height/2
		dx := math.Max(math.Max(minX-wx, wx-maxX), 0)
		dy := math.Max(math.Max(minY-wy, wy-maxY), 0)
		if math.Hypot(dx, dy) <= radius {
			out = append(out, w)
		}
	}
	sortReadingOrder(out)
	return out
}

// buildBlock assembles a MatchBlock: bbox is the min/max envelope of the
// contributing words, confidence their mean OCR confidence. Reports false
// for an empty word list instead of fabricating a zero-valued block.
func buildBlock(words []model.WordPosition, strategy model.MatchStrategy) (model.MatchBlock, bool) {
	if len(words) == 0 {
		return model.MatchBlock{}, false
	}

	minX, minY, maxX, maxY := envelope(words)
	var confSum float64
	texts := make([]string, 0, len(words))
	for _, w := range words {
		confSum += w.Confidence
		texts = append(texts, w.Text)
	}

	return model.MatchBlock{
		Page:       words[0].Page,
		X:          minX,
		Y:          minY,
		Width:      maxX - minX,
		Height:     maxY - minY,
		Context:    strings.Join(texts, " "),
		Strategy:   strategy,
		Confidence: confSum / float64(len(words)),
	}, true
}

// envelope returns the min/max bounding rectangle of the words.
func envelope(words []model.WordPosition) (minX, minY, maxX, maxY float64) {
	minX, minY = math.MaxFloat64, math.MaxFloat64
	for _, w := range words {
		minX = math.Min(minX, w.X)
		minY = math.Min(minY, w.Y)
		maxX = math.Max(maxX, w.X+w.Width)
		maxY = math.Max(maxY, w.Y+w.Height)
	}
	return minX, minY, maxX, maxY
}

func centerDistance(a, b model.WordPosition) float64 {
	return math.Hypot(
		(a.X+a.Width/2)-(b.X+b.Width/2),
		(a.Y+a.Height/2)-(b.Y+b.Height/2),
	)
}

// splitPages groups positions by page in reading order.
func splitPages(positions []model.WordPosition) map[int][]model.WordPosition {
	pages := make(map[int][]model.WordPosition)
	for _, p := range positions {
		pages[p.Page] = append(pages[p.Page], p)
	}
	for n := range pages {
		sortReadingOrder(pages[n])
	}
	return pages
}

// sortReadingOrder sorts top-to-bottom, then left-to-right within a
// line-height tolerance.
func sortReadingOrder(words []model.WordPosition) {
	sort.SliceStable(words, func(i, j int) bool {
		tol := math.Max(words[i].Height, words[j].Height) / 2
		if math.Abs(words[i].Y-words[j].Y) > tol {
			return words[i].Y < words[j].Y
		}
		return words[i].X < words[j].X
	})
}

// strategyRank orders strategies by match quality.
func strategyRank(s model.MatchStrategy) int {
	switch s {
	case model.StrategyPhrase:
		return 0
	case model.StrategySequence:
		return 1
	default:
		return 2
	}
}

func sortBlocks(blocks []model.MatchBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if a, b := strategyRank(blocks[i].Strategy), strategyRank(blocks[j].Strategy); a != b {
			return a < b
		}
		if blocks[i].Page != blocks[j].Page {
			return blocks[i].Page < blocks[j].Page
		}
		return blocks[i].Y < blocks[j].Y
	})
}

// dedupeBlocks suppresses blocks on the same page whose bounding boxes fall
// within a small pixel tolerance of an earlier block.
func dedupeBlocks(blocks []model.MatchBlock) []model.MatchBlock {
	var kept []model.MatchBlock
	for _, b := range blocks {
		dup := false
		for _, k := range kept {
			if b.Page == k.Page &&
				math.Abs(b.X-k.X) <= bboxTolerance &&
				math.Abs(b.Y-k.Y) <= bboxTolerance &&
				math.Abs(b.Width-k.Width) <= bboxTolerance &&
				math.Abs(b.Height-k.Height) <= bboxTolerance {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, b)
		}
	}
	return kept
}
