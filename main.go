package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func processError(err error) {
	log.Println(err.Error())
	os.Exit(2)
}

func openFavoritesStore(cfg *Config, store *Store) (KeyValueStore, error) {
	if cfg.Redis.Address == "" {
		return store, nil
	}
	return NewRedisStore(cfg)
}

func main() {
	configFile := flag.String("config", defaultConfigFile, "path to the JSON config file")
	flag.Parse()

	cfg, err := LoadConfig(*configFile)
	if err != nil {
		processError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := NewStore(cfg.Database)
	if err != nil {
		processError(err)
	}
	defer store.Close()

	reqCache := NewReqCache(store, cfg.CacheTTL)
	if reqCache != nil {
		go reqCache.PurgeExpired(ctx)
	}

	kv, err := openFavoritesStore(&cfg, store)
	if err != nil {
		processError(err)
	}
	if rs, ok := kv.(*RedisStore); ok {
		defer rs.Close()
	}

	favorites := NewFavorites(kv)
	favorites.Load(ctx)

	api := NewUnsplashApi(&cfg, reqCache)
	search := NewSearchClient(api, cfg.Gallery.MaxPageFailures)
	gallery := NewGallery(ctx, search, favorites, cfg.Debounce())
	defer gallery.Close()

	go func() {
		if err := gallery.Search(ctx, cfg.Gallery.DefaultQuery); err != nil {
			log.Println("Initial search failed:", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           NewServer(&cfg, gallery),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Println("Starting Server on", cfg.Server.Listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
