package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

const favoritesKey string = "gallery_favorites"

// Favorites holds the user's favorited images and mirrors them to a
// KeyValueStore under a single key. Persistence failures are logged and never
// returned; callers continue with the in-memory set.
type Favorites struct {
	kv      KeyValueStore
	log     *log.Logger
	mu      sync.Mutex
	images  []Image
	loading atomic.Bool
}

func NewFavorites(kv KeyValueStore) *Favorites {
	return &Favorites{
		kv:     kv,
		log:    log.New(os.Stderr, "(favorites) ", log.LstdFlags),
		images: []Image{},
	}
}

// Load replaces the in-memory set with the persisted one. A missing key or an
// unreadable value yields an empty set.
func (fav *Favorites) Load(ctx context.Context) []Image {
	fav.loading.Store(true)
	defer fav.loading.Store(false)

	fav.mu.Lock()
	defer fav.mu.Unlock()

	fav.images = fav.read(ctx)
	return cloneImages(fav.images)
}

func (fav *Favorites) Refresh(ctx context.Context) []Image {
	return fav.Load(ctx)
}

func (fav *Favorites) read(ctx context.Context) []Image {
	data, ok, err := fav.kv.Get(ctx, favoritesKey)
	if err != nil {
		fav.log.Println("Error loading favorites:", err)
		return []Image{}
	}
	if !ok {
		return []Image{}
	}
	var images []Image
	if err := json.Unmarshal(data, &images); err != nil {
		fav.log.Println("Error decoding favorites:", err)
		return []Image{}
	}
	if images == nil {
		images = []Image{}
	}
	return images
}

// Toggle removes the image if one with the same id is present, otherwise
// appends it, and returns whether it is now a favorite.
func (fav *Favorites) Toggle(ctx context.Context, img Image) bool {
	fav.mu.Lock()
	defer fav.mu.Unlock()

	next := make([]Image, 0, len(fav.images)+1)
	added := true
	for _, f := range fav.images {
		if f.Id == img.Id {
			added = false
			continue
		}
		next = append(next, f)
	}
	if added {
		next = append(next, img)
	}

	err := fav.write(ctx, next)
	favoriteWritesTotal.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		// The in-memory set still moves forward; the next successful write
		// catches the store up.
		fav.log.Println("Error saving favorites:", err)
	}
	fav.images = next
	return added
}

func (fav *Favorites) write(ctx context.Context, images []Image) error {
	data, err := json.Marshal(images)
	if err != nil {
		return err
	}
	return fav.kv.Set(ctx, favoritesKey, data)
}

func (fav *Favorites) IsFavorite(id string) bool {
	fav.mu.Lock()
	defer fav.mu.Unlock()
	return indexOfImage(fav.images, id) >= 0
}

func (fav *Favorites) Favorites() []Image {
	fav.mu.Lock()
	defer fav.mu.Unlock()
	return cloneImages(fav.images)
}

func (fav *Favorites) IsLoading() bool {
	return fav.loading.Load()
}

func cloneImages(images []Image) []Image {
	out := make([]Image, len(images))
	copy(out, images)
	return out
}
