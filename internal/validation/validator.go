// Package validation checks LLM-proposed movies against the external
// catalogs, scoring each candidate's confidence and deciding whether it
// survives into the final recommendation list.
package validation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/cineman/internal/catalog"
	"github.com/kdimtricp/cineman/internal/metrics"
)

// Candidate is one movie proposed by the language model.
type Candidate struct {
	Title    string `json:"title"`
	Year     string `json:"year,omitempty"`
	Director string `json:"director,omitempty"`
}

// Source names which providers confirmed a candidate.
type Source string

const (
	SourceBoth Source = "both"
	SourceTMDB Source = "tmdb"
	SourceOMDB Source = "omdb"
	SourceNone Source = "none"
)

// Correction records a field the catalogs disagreed with the model about.
type Correction struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Result is the validation outcome for one candidate. Valid=false results
// carry a Reason; valid ones carry the canonical title/year and the raw
// provider records for downstream enrichment.
type Result struct {
	Input       Candidate      `json:"input"`
	Valid       bool           `json:"valid"`
	Duplicate   bool           `json:"duplicate,omitempty"`
	Confidence  float64        `json:"confidence"`
	Source      Source         `json:"source"`
	Title       string         `json:"title,omitempty"`
	Year        string         `json:"year,omitempty"`
	Director    string         `json:"director,omitempty"`
	Corrections []Correction   `json:"corrections,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	TMDB        catalog.Record `json:"-"`
	OMDB        catalog.Record `json:"-"`
	Latency     time.Duration  `json:"-"`
}

// Summary aggregates a batch outcome.
type Summary struct {
	Checked      int      `json:"checked"`
	Valid        int      `json:"valid"`
	Dropped      int      `json:"dropped"`
	Duplicates   int      `json:"duplicates"`
	DroppedTitle []string `json:"dropped_titles,omitempty"`
	AvgLatencyMS float64  `json:"avg_latency_ms"`
}

// Config tunes the validator. Zero values fall back to defaults.
type Config struct {
	SimilarityThreshold float64       // minimum score for a confident title match (default 0.8)
	WeakThreshold       float64       // floor below which a match is unusable (default 0.5)
	DropThreshold       float64       // confidence below this drops the candidate (default 0.5)
	SingleSourcePenalty float64       // multiplier when only one provider confirms (default 0.8)
	MaxConcurrent       int           // candidate worker bound (default 8)
	BatchTimeout        time.Duration // wall-clock budget for a whole batch (default 30s)
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.8
	}
	if c.WeakThreshold <= 0 {
		c.WeakThreshold = 0.5
	}
	if c.DropThreshold <= 0 {
		c.DropThreshold = 0.5
	}
	if c.SingleSourcePenalty <= 0 {
		c.SingleSourcePenalty = 0.8
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 8
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 30 * time.Second
	}
	return c
}

// Validator validates candidate batches against the primary and secondary
// catalogs.
type Validator struct {
	primary   catalog.Client
	secondary catalog.Client
	sim       Similarity
	cfg       Config
	logger    zerolog.Logger
}

func New(primary, secondary catalog.Client, sim Similarity, cfg Config, logger zerolog.Logger) *Validator {
	if sim == nil {
		sim = EditDistanceSimilarity{}
	}
	return &Validator{
		primary:   primary,
		secondary: secondary,
		sim:       sim,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// ValidateBatch validates candidates concurrently, preserving input order in
// the returned slice. seen holds normalized titles already recommended in
// the session; matches are marked duplicate without touching the network,
// as are repeats within the batch itself. A provider failure for one
// candidate never aborts the others.
func (v *Validator) ValidateBatch(ctx context.Context, candidates []Candidate, seen map[string]bool) ([]Result, Summary) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.BatchTimeout)
	defer cancel()

	results := make([]Result, len(candidates))
	inBatch := make(map[string]bool, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.MaxConcurrent)

	for i, cand := range candidates {
		norm := Normalize(cand.Title)
		if norm == "" {
			results[i] = Result{Input: cand, Source: SourceNone, Reason: "empty title"}
			continue
		}
		if seen[norm] || inBatch[norm] {
			metrics.DuplicateRecommendations.Inc()
			results[i] = Result{Input: cand, Duplicate: true, Source: SourceNone, Reason: "already recommended"}
			continue
		}
		inBatch[norm] = true

		i, cand := i, cand
		g.Go(func() error {
			results[i] = v.validateOne(ctx, cand)
			return nil
		})
	}

	g.Wait()
	return results, summarize(results)
}

func (v *Validator) validateOne(ctx context.Context, cand Candidate) Result {
	start := time.Now()

	var (
		pRec, sRec catalog.Record
		pErr, sErr error
		done       = make(chan struct{})
	)
	go func() {
		sRec, sErr = v.secondary.Lookup(ctx, cand.Title, cand.Year)
		close(done)
	}()
	pRec, pErr = v.primary.Lookup(ctx, cand.Title, cand.Year)
	<-done

	res := v.score(cand, pRec, pErr, sRec, sErr)
	res.Latency = time.Since(start)

	outcome := "dropped"
	if res.Valid {
		outcome = "valid"
	}
	metrics.ValidationOutcomes.WithLabelValues(outcome).Inc()
	metrics.ValidationDuration.Observe(res.Latency.Seconds())

	v.logger.Debug().
		Str("title", cand.Title).
		Str("source", string(res.Source)).
		Float64("confidence", res.Confidence).
		Bool("valid", res.Valid).
		Dur("latency", res.Latency).
		Msg("candidate validated")
	return res
}

// score applies the confidence policy over the two provider outcomes.
func (v *Validator) score(cand Candidate, pRec catalog.Record, pErr error, sRec catalog.Record, sErr error) Result {
	res := Result{Input: cand, Source: SourceNone}

	norm := Normalize(cand.Title)
	pSim := v.matchScore(norm, pRec, pErr)
	sSim := v.matchScore(norm, sRec, sErr)
	pMatch := pSim >= v.cfg.SimilarityThreshold
	sMatch := sSim >= v.cfg.SimilarityThreshold

	switch {
	case pMatch && sMatch:
		res.Source = SourceBoth
		res.TMDB, res.OMDB = pRec, sRec
		// The secondary catalog's exact-title records win for canonicals.
		res.Title, res.Year = sRec.Title, sRec.Year
		if res.Year == "" {
			res.Year = pRec.Year
		}
		if yearsAgree(pRec.Year, sRec.Year) {
			res.Confidence = 0.95
		} else {
			res.Confidence = 0.90
		}

	case pMatch || sMatch:
		base := 0.90
		if pMatch {
			res.Source = SourceTMDB
			res.TMDB = pRec
			res.Title, res.Year = pRec.Title, pRec.Year
			if yearsAgree(NormalizeYear(cand.Year), pRec.Year) {
				base = 0.95
			}
		} else {
			res.Source = SourceOMDB
			res.OMDB = sRec
			res.Title, res.Year = sRec.Title, sRec.Year
			if yearsAgree(NormalizeYear(cand.Year), sRec.Year) {
				base = 0.95
			}
		}
		res.Confidence = base * v.cfg.SingleSourcePenalty

	default:
		best, bestRec, bestSource := pSim, pRec, SourceTMDB
		if sSim > best {
			best, bestRec, bestSource = sSim, sRec, SourceOMDB
		}
		if best >= v.cfg.WeakThreshold {
			res.Source = bestSource
			res.Title, res.Year = bestRec.Title, bestRec.Year
			if bestSource == SourceTMDB {
				res.TMDB = bestRec
			} else {
				res.OMDB = bestRec
			}
			res.Confidence = 0.2 + 0.6*best
		}
	}

	res.Valid = res.Source != SourceNone && res.Confidence >= v.cfg.DropThreshold
	if !res.Valid {
		res.Title, res.Year = "", ""
		res.TMDB, res.OMDB = catalog.Record{}, catalog.Record{}
		res.Reason = dropReason(pErr, sErr)
		return res
	}

	if res.Title != "" && Normalize(res.Title) != norm {
		res.Corrections = append(res.Corrections, Correction{Field: "title", Old: cand.Title, New: res.Title})
	}
	if candYear := NormalizeYear(cand.Year); candYear != "" && res.Year != "" && candYear != res.Year {
		res.Corrections = append(res.Corrections, Correction{Field: "year", Old: candYear, New: res.Year})
	}
	// The exact-title catalog's director is authoritative when it has one.
	res.Director = cand.Director
	if res.OMDB.Director != "" {
		res.Director = res.OMDB.Director
		if cand.Director != "" && Normalize(cand.Director) != Normalize(res.OMDB.Director) {
			res.Corrections = append(res.Corrections, Correction{Field: "director", Old: cand.Director, New: res.OMDB.Director})
		}
	}
	return res
}

// matchScore folds a provider outcome into a similarity score. Failures and
// misses both score zero so the policy only ever sees usable records.
func (v *Validator) matchScore(normTitle string, rec catalog.Record, err error) float64 {
	if err != nil || !rec.Found || rec.Title == "" {
		return 0
	}
	return v.sim.Score(normTitle, Normalize(rec.Title))
}

func yearsAgree(a, b string) bool {
	return a != "" && a == b
}

func dropReason(pErr, sErr error) string {
	if pErr != nil && sErr != nil {
		return "both catalogs unavailable"
	}
	return "not found in movie databases"
}

func summarize(results []Result) Summary {
	var s Summary
	var totalLatency time.Duration
	var measured int

	s.Checked = len(results)
	for _, r := range results {
		switch {
		case r.Duplicate:
			s.Duplicates++
		case r.Valid:
			s.Valid++
		default:
			s.Dropped++
			s.DroppedTitle = append(s.DroppedTitle, r.Input.Title)
		}
		if r.Latency > 0 {
			totalLatency += r.Latency
			measured++
		}
	}
	if measured > 0 {
		s.AvgLatencyMS = float64(totalLatency.Milliseconds()) / float64(measured)
	}
	return s
}
