package bankmine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ErrBoundaryNotFound is the gap condition: the ledger's last known
// transaction could not be located in the live feed within the available
// pagination window or the lookback cap. Nothing is appended, since
// appending without the boundary risks duplicating or silently skipping
// transactions. Distinct from "no new transactions", which is a normal
// zero-row sync.
var ErrBoundaryNotFound = errors.New("sync boundary not found within the available feed window")

// Feed is the live, newest-first transaction list view. Index 0 is the
// newest entry.
type Feed interface {
	// Len returns the number of currently revealed entries.
	Len(ctx context.Context) (int, error)
	// URL returns the detail URL of the entry at index.
	URL(ctx context.Context, index int) (string, error)
	// LoadMore reveals older entries, reporting whether any appeared.
	LoadMore(ctx context.Context) (bool, error)
}

// Opener runs fn against the detail view at url in an auxiliary tab that
// is always closed again before Opener returns, error or not.
type Opener interface {
	VisitDetail(ctx context.Context, url string, fn func(View) error) error
}

// SyncResult summarizes one mining run.
type SyncResult struct {
	RunID    string
	Visited  int
	Appended int
	Elapsed  time.Duration
}

// Syncer brings a Ledger up to date with the live feed: it walks the
// feed newest-first until it meets the ledger's last recorded
// transaction, then appends everything newer, oldest-first, in one
// batch.
type Syncer struct {
	Ledger    *Ledger
	Feed      Feed
	Opener    Opener
	Extractor *Extractor

	// Vocabulary resolves DerivedTag for newly appended rows. Optional;
	// only consulted when the ledger carries the NewTags column.
	Vocabulary *Vocabulary

	// Lookback caps how many of the newest entries one run may visit.
	// 0 means no cap. A capped run assumes the boundary lies within the
	// newest Lookback entries; when it does not, the run reports the
	// gap condition instead of guessing.
	Lookback int

	// Retries is the number of additional attempts per detail view
	// after a failed extraction, spaced by RetryBackoff.
	Retries      int
	RetryBackoff time.Duration

	// DryRun walks and reports without mutating the ledger.
	DryRun bool

	Log zerolog.Logger

	// Extractions are memoized per URL for the run, so a consistency
	// check and the following walk never scrape the same detail page
	// twice.
	cache *gocache.Cache
}

// Sync executes one mining run. On any error the ledger file is
// byte-for-byte unchanged.
func (s *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{RunID: uuid.NewString()}
	log := s.Log.With().Str("run_id", result.RunID).Logger()

	boundary, err := s.Ledger.LastTransaction()
	if err != nil && !errors.Is(err, ErrEmptyLedger) {
		return nil, err
	}
	if boundary == nil {
		log.Info().Msg("ledger is empty, ingesting the full reachable feed")
	} else {
		log.Info().
			Time("boundary_date", boundary.Date).
			Str("boundary_url", boundary.URL).
			Str("boundary_amount", boundary.Amount.String()).
			Msg("starting sync walk")
	}

	// Walk newest-first, collecting everything newer than the boundary.
	var fresh []*Transaction
	revealed, err := s.Feed.Len(ctx)
	if err != nil {
		return nil, err
	}
walk:
	for index := 0; ; index++ {
		if s.Lookback > 0 && index >= s.Lookback {
			if boundary == nil {
				log.Info().Int("lookback", s.Lookback).Msg("lookback cap reached on empty ledger, stopping walk")
				break walk
			}
			return nil, fmt.Errorf("%w: lookback cap of %d entries exhausted", ErrBoundaryNotFound, s.Lookback)
		}
		for index >= revealed {
			more, err := s.Feed.LoadMore(ctx)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			if revealed, err = s.Feed.Len(ctx); err != nil {
				return nil, err
			}
		}
		if index >= revealed {
			if boundary == nil {
				break walk
			}
			return nil, fmt.Errorf("%w: feed exhausted after %d entries", ErrBoundaryNotFound, index)
		}

		url, err := s.Feed.URL(ctx, index)
		if err != nil {
			return nil, err
		}
		trans, err := s.extract(ctx, log, url)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", index, url, err)
		}
		result.Visited++

		if boundary != nil && trans.SameAs(boundary) {
			log.Debug().Int("index", index).Str("url", url).Msg("reached sync boundary")
			break walk
		}
		fresh = append(fresh, trans)
	}

	// Visitation order is newest-first; the ledger wants oldest-first.
	for i, j := 0, len(fresh)-1; i < j; i, j = i+1, j-1 {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	}

	if s.Vocabulary != nil && s.Ledger.HasDerivedTags() {
		s.resolveTags(log, fresh)
	}

	if s.DryRun {
		log.Info().Int("would_append", len(fresh)).Msg("dry run, ledger untouched")
	} else if err := s.Ledger.AppendTransactions(fresh); err != nil {
		return nil, err
	} else {
		result.Appended = len(fresh)
	}

	result.Elapsed = time.Since(start)
	log.Info().
		Int("visited", result.Visited).
		Int("appended", result.Appended).
		Dur("elapsed", result.Elapsed).
		Msg("sync complete")
	return result, nil
}

func (s *Syncer) resolveTags(log zerolog.Logger, rows []*Transaction) {
	for _, trans := range rows {
		if trans.Tags == "" {
			continue
		}
		resolved, candidates := s.Vocabulary.Resolve(trans.Tags)
		trans.DerivedTag = resolved
		if resolved == Unresolved {
			log.Warn().
				Str("url", trans.URL).
				Str("tags", trans.Tags).
				Strs("candidates", candidates).
				Msg("tag resolution ambiguous, marking unresolved")
		}
	}
}

// extract visits url and extracts its transaction, memoized per URL with
// a bounded automatic retry. Whether a persistent failure warrants a
// human or an abort is the caller's decision, not this method's.
func (s *Syncer) extract(ctx context.Context, log zerolog.Logger, url string) (*Transaction, error) {
	if s.cache == nil {
		s.cache = gocache.New(10*time.Minute, 30*time.Minute)
	}
	if cached, ok := s.cache.Get(url); ok {
		return cached.(*Transaction), nil
	}

	attempts := s.Retries + 1
	var trans *Transaction
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			log.Warn().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("retrying extraction")
			select {
			case <-time.After(s.RetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		err = s.Opener.VisitDetail(ctx, url, func(v View) error {
			extracted, xerr := s.Extractor.Extract(ctx, v)
			if xerr != nil {
				return xerr
			}
			trans = extracted
			return nil
		})
		if err == nil {
			trans.URL = url
			s.cache.Set(url, trans, gocache.DefaultExpiration)
			return trans, nil
		}
	}
	return nil, err
}
