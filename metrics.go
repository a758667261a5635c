package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_upstream_requests_total",
			Help: "Search API page fetches by provider and outcome",
		},
		[]string{"provider", "result"},
	)

	searchCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_search_completions_total",
			Help: "Search and load-more completions by kind and outcome (ok, error, stale)",
		},
		[]string{"kind", "result"},
	)

	favoriteWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_favorite_writes_total",
			Help: "Favorites persistence writes by outcome",
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "HTTP requests served by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
