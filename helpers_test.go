package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type memoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: map[string][]byte{}}
}

func (m *memoryKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	m.sets++
	return nil
}

var errDiskFull = errors.New("disk full")

type failingKV struct {
	getErr error
	setErr error
}

func (f *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, f.getErr
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	return f.setErr
}

// gatedKV holds every Get until release is closed, announcing each one on
// entered first.
type gatedKV struct {
	*memoryKV
	entered chan struct{}
	release chan struct{}
}

func newGatedKV() *gatedKV {
	return &gatedKV{
		memoryKV: newMemoryKV(),
		entered:  make(chan struct{}, 4),
		release:  make(chan struct{}),
	}
}

func (g *gatedKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.memoryKV.Get(ctx, key)
}

type searchCall struct {
	page  int
	query string
}

// fakeSearcher serves scripted pages per query. A gate registered for a query
// holds that query's fetches until the channel is closed.
type fakeSearcher struct {
	mu    sync.Mutex
	pages map[string][][]Image
	fail  map[int]error
	gates map[string]chan struct{}
	calls []searchCall
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		pages: map[string][][]Image{},
		fail:  map[int]error{},
		gates: map[string]chan struct{}{},
	}
}

func (fs *fakeSearcher) Type() string  { return "fake" }
func (fs *fakeSearcher) PageSize() int { return 20 }

func (fs *fakeSearcher) Search(ctx context.Context, page int, query string) ImageSearchResult {
	fs.mu.Lock()
	fs.calls = append(fs.calls, searchCall{page: page, query: query})
	gate := fs.gates[query]
	fs.mu.Unlock()

	if gate != nil {
		<-gate
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return ImageSearchResult{err: err, images: []Image{}}
	}
	if err := fs.fail[page]; err != nil {
		return ImageSearchResult{err: err, images: []Image{}}
	}
	pages := fs.pages[query]
	if page-1 >= len(pages) {
		return ImageSearchResult{images: []Image{}}
	}
	return ImageSearchResult{images: cloneImages(pages[page-1])}
}

func (fs *fakeSearcher) callCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.calls)
}

func (fs *fakeSearcher) lastCall() searchCall {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[len(fs.calls)-1]
}

func testImage(id string) Image {
	return Image{
		Id:           id,
		Uri:          fmt.Sprintf("https://images.example.com/%s.jpg", id),
		Photographer: "Ansel " + id,
		Timestamp:    1700000000000,
	}
}

func testPage(prefix string, n int) []Image {
	out := make([]Image, n)
	for i := range out {
		out[i] = testImage(fmt.Sprintf("%s-%d", prefix, i))
	}
	return out
}

func imageIds(images []Image) []string {
	ids := make([]string, len(images))
	for i, img := range images {
		ids[i] = img.Id
	}
	return ids
}
