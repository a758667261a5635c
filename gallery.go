package main

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// ErrBusy is returned by Gallery.LoadMore while a fetch is already running.
var ErrBusy = errors.New("a fetch is already in flight")

type GalleryImage struct {
	Image
	Favorite bool `json:"favorite"`
}

type GalleryView struct {
	Query     string         `json:"query"`
	Page      int            `json:"page"`
	Images    []GalleryImage `json:"images"`
	IsLoading bool           `json:"isLoading"`
	Error     string         `json:"error,omitempty"`
	Exhausted bool           `json:"exhausted"`
}

// Gallery ties the search client and the favorites store to the actions a
// grid client sends: typing, scrolling to the end, and tapping a heart.
type Gallery struct {
	search    *SearchClient
	favorites *Favorites
	log       *log.Logger

	ctx      context.Context
	debounce time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	pending  string
	seq      uint64
}

func NewGallery(ctx context.Context, search *SearchClient, favorites *Favorites, debounce time.Duration) *Gallery {
	return &Gallery{
		search:    search,
		favorites: favorites,
		log:       log.New(os.Stderr, "(gallery) ", log.LstdFlags),
		ctx:       ctx,
		debounce:  debounce,
	}
}

// QueryChanged records the latest search text. The search runs once no
// further change arrived for the debounce window.
func (g *Gallery) QueryChanged(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = text
	g.seq++
	seq := g.seq
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(g.debounce, func() { g.fireSearch(seq) })
}

func (g *Gallery) fireSearch(seq uint64) {
	g.mu.Lock()
	if seq != g.seq {
		g.mu.Unlock()
		return
	}
	text := g.pending
	g.timer = nil
	g.mu.Unlock()

	if err := g.search.Search(g.ctx, text); err != nil && !errors.Is(err, ErrStaleResult) {
		g.log.Println("debounced search failed:", err)
	}
}

func (g *Gallery) Search(ctx context.Context, text string) error {
	return g.search.Search(ctx, text)
}

func (g *Gallery) LoadMore(ctx context.Context) error {
	if g.search.IsLoading() {
		return ErrBusy
	}
	return g.search.LoadMore(ctx)
}

func (g *Gallery) ToggleFavorite(ctx context.Context, img Image) bool {
	return g.favorites.Toggle(ctx, img)
}

func (g *Gallery) IsFavorite(id string) bool {
	return g.favorites.IsFavorite(id)
}

func (g *Gallery) Favorites() []Image {
	return g.favorites.Favorites()
}

func (g *Gallery) RefreshFavorites(ctx context.Context) []Image {
	return g.favorites.Refresh(ctx)
}

func (g *Gallery) FavoritesLoading() bool {
	return g.favorites.IsLoading()
}

func (g *Gallery) View() GalleryView {
	state := g.search.Snapshot()
	images := make([]GalleryImage, len(state.Images))
	for i, img := range state.Images {
		images[i] = GalleryImage{Image: img, Favorite: g.favorites.IsFavorite(img.Id)}
	}
	return GalleryView{
		Query:     state.Query,
		Page:      state.Page,
		Images:    images,
		IsLoading: state.IsLoading,
		Error:     state.Error,
		Exhausted: state.Exhausted,
	}
}

// Close drops a pending debounced search.
func (g *Gallery) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
