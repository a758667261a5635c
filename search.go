package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

const (
	searchFailedMessage   = "Failed to fetch images. Please try again."
	loadMoreFailedMessage = "Failed to load more images. Please try again."
)

var (
	// ErrStaleResult reports a completion that was discarded because a newer
	// search replaced the query it was issued for.
	ErrStaleResult = errors.New("search result superseded by a newer search")
	// ErrPaginationStopped is returned by LoadMore once the result set is
	// exhausted or the next page failed too many times in a row.
	ErrPaginationStopped = errors.New("pagination stopped")
)

type SearchState struct {
	Query     string  `json:"query"`
	Page      int     `json:"page"`
	Images    []Image `json:"images"`
	IsLoading bool    `json:"isLoading"`
	Error     string  `json:"error,omitempty"`
	Exhausted bool    `json:"exhausted"`
}

// SearchClient accumulates pages of results for the current query. Network
// I/O happens outside the lock; every completion is matched against the
// generation it was issued under and dropped if a newer search started.
type SearchClient struct {
	api             ImageSearcher
	maxPageFailures int
	log             *log.Logger

	mu         sync.Mutex
	generation uint64
	query      string
	page       int
	images     []Image
	loading    bool
	lastError  string
	failures   int
	exhausted  bool
}

func NewSearchClient(api ImageSearcher, maxPageFailures int) *SearchClient {
	return &SearchClient{
		api:             api,
		maxPageFailures: maxPageFailures,
		log:             log.New(os.Stderr, "(search) ", log.LstdFlags),
		page:            1,
		images:          []Image{},
	}
}

// Search fetches page one of query and replaces the result list. Blank
// queries are ignored. The fetch is detached from ctx cancellation: results
// that are no longer wanted are dropped on completion, never aborted.
func (sc *SearchClient) Search(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	sc.mu.Lock()
	sc.generation++
	gen := sc.generation
	sc.query = query
	sc.page = 1
	sc.loading = true
	sc.failures = 0
	sc.exhausted = false
	sc.mu.Unlock()

	res := sc.api.Search(ctx, 1, query)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if gen != sc.generation {
		sc.log.Printf("dropping stale results for %q", query)
		searchCompletionsTotal.WithLabelValues("search", "stale").Inc()
		return ErrStaleResult
	}
	sc.loading = false
	searchCompletionsTotal.WithLabelValues("search", outcome(res.err)).Inc()
	if res.err != nil {
		sc.lastError = searchFailedMessage
		return fmt.Errorf("search %q: %w", query, res.err)
	}
	sc.images = mergeImages(nil, res.images)
	sc.lastError = ""
	sc.exhausted = len(res.images) == 0
	return nil
}

// LoadMore appends the next page of the current query. It does nothing while
// another fetch is in flight or before the first search. Like Search, the
// fetch outlives a cancelled ctx.
func (sc *SearchClient) LoadMore(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	sc.mu.Lock()
	if sc.query == "" || sc.loading {
		sc.mu.Unlock()
		return nil
	}
	if sc.exhausted {
		sc.mu.Unlock()
		return ErrPaginationStopped
	}
	gen := sc.generation
	query := sc.query
	next := sc.page + 1
	sc.loading = true
	sc.mu.Unlock()

	res := sc.api.Search(ctx, next, query)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if gen != sc.generation {
		searchCompletionsTotal.WithLabelValues("more", "stale").Inc()
		return ErrStaleResult
	}
	sc.loading = false
	searchCompletionsTotal.WithLabelValues("more", outcome(res.err)).Inc()
	if res.err != nil {
		sc.lastError = loadMoreFailedMessage
		sc.failures++
		if sc.maxPageFailures > 0 && sc.failures >= sc.maxPageFailures {
			sc.log.Printf("page %d of %q failed %d times, giving up", next, query, sc.failures)
			sc.exhausted = true
		}
		return fmt.Errorf("load page %d of %q: %w", next, query, res.err)
	}
	sc.images = mergeImages(sc.images, res.images)
	sc.page = next
	sc.lastError = ""
	sc.failures = 0
	sc.exhausted = len(res.images) == 0
	return nil
}

func (sc *SearchClient) IsLoading() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.loading
}

func (sc *SearchClient) Snapshot() SearchState {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return SearchState{
		Query:     sc.query,
		Page:      sc.page,
		Images:    cloneImages(sc.images),
		IsLoading: sc.loading,
		Error:     sc.lastError,
		Exhausted: sc.exhausted,
	}
}

// mergeImages appends page to images, skipping ids already present. The API
// can repeat a photo across pages when its ranking shifts between requests.
func mergeImages(images []Image, page []Image) []Image {
	seen := make(map[string]struct{}, len(images)+len(page))
	for _, img := range images {
		seen[img.Id] = struct{}{}
	}
	out := images
	if out == nil {
		out = make([]Image, 0, len(page))
	}
	for _, img := range page {
		if _, dup := seen[img.Id]; dup {
			continue
		}
		seen[img.Id] = struct{}{}
		out = append(out, img)
	}
	return out
}
