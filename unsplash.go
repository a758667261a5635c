package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

type UnsplashPhoto struct {
	Id        string       `json:"id"`
	CreatedAt string       `json:"created_at"`
	User      UnsplashUser `json:"user"`
	Urls      UnsplashUrls `json:"urls"`
}

type UnsplashUser struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type UnsplashUrls struct {
	Regular string `json:"regular"`
	Raw     string `json:"raw"`
}

type UnsplashSearchResult struct {
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
	Results    []UnsplashPhoto `json:"results"`
}

// UpstreamError is a non-2xx answer from the search API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

type UnsplashApi struct {
	Http      http.Client
	cache     *ReqCache
	breaker   *gobreaker.CircuitBreaker
	accessKey string
	baseUrl   string
	log       *log.Logger
}

func NewUnsplashApi(cfg *Config, cache *ReqCache) *UnsplashApi {
	logger := log.New(os.Stderr, "(unsplash) ", log.LstdFlags)
	return &UnsplashApi{
		Http:      http.Client{Timeout: cfg.UpstreamTimeout()},
		cache:     cache,
		breaker:   NewBreaker(UpstreamBreakerConfig("unsplash"), logger),
		accessKey: cfg.Unsplash.AccessKey,
		baseUrl:   strings.TrimSuffix(cfg.Unsplash.BaseUrl, "/") + "/search/photos",
		log:       logger,
	}
}

func (unsp *UnsplashApi) Type() string {
	return "unsplash"
}

func (unsp *UnsplashApi) PageSize() int { return 20 }

func (unsp *UnsplashApi) Search(ctx context.Context, page int, query string) ImageSearchResult {
	out, err := unsp.breaker.Execute(func() (interface{}, error) {
		return unsp.fetch(ctx, page, query)
	})
	upstreamRequestsTotal.WithLabelValues(unsp.Type(), outcome(err)).Inc()
	if err != nil {
		unsp.log.Printf("search %q page %d failed: %v", query, page, err)
		return ImageSearchResult{err: err, images: []Image{}}
	}
	return ImageSearchResult{err: nil, images: out.([]Image)}
}

func (unsp *UnsplashApi) fetch(ctx context.Context, page int, query string) ([]Image, error) {
	qParam := url.Values{}
	qParam.Add("query", query)
	qParam.Add("page", strconv.Itoa(page))
	qParam.Add("per_page", strconv.Itoa(unsp.PageSize()))
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, unsp.baseUrl+"?"+qParam.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	getReq.Header.Set("Accept-Version", "v1")
	getReq.Header.Set("Authorization", "Client-ID "+unsp.accessKey)
	res, err := unsp.cache.CachedFetch(getReq, &unsp.Http)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &UpstreamError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data := UnsplashSearchResult{}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	output := make([]Image, len(data.Results))
	for i, el := range data.Results {
		output[i].Id = el.Id
		output[i].Uri = el.Urls.Regular
		output[i].Photographer = el.User.Name
		output[i].Timestamp = unsp.parseCreatedAt(el)
	}
	return output, nil
}

func (unsp *UnsplashApi) parseCreatedAt(el UnsplashPhoto) int64 {
	created, err := time.Parse(time.RFC3339, el.CreatedAt)
	if err != nil {
		unsp.log.Printf("photo %s: bad created_at %q", el.Id, el.CreatedAt)
		return 0
	}
	return created.UnixMilli()
}
