package main

import "context"

type Image struct {
	Id           string `json:"id"`
	Uri          string `json:"uri"`
	Photographer string `json:"photographer,omitempty"`
	Timestamp    int64  `json:"timestamp"`
}

type ImageSearcher interface {
	Search(ctx context.Context, page int, query string) ImageSearchResult
	Type() string
	PageSize() int
}

type ImageSearchResult struct {
	err    error
	images []Image
}

func indexOfImage(images []Image, id string) int {
	for i, img := range images {
		if img.Id == id {
			return i
		}
	}
	return -1
}
