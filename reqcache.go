package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"time"
)

type ReqCache struct {
	store *Store
	ttl   int64
	log   *log.Logger
}

// NewReqCache returns nil when ttl is not positive; a nil *ReqCache fetches
// straight through.
func NewReqCache(store *Store, ttl int64) *ReqCache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &ReqCache{
		store: store,
		ttl:   ttl,
		log:   log.New(os.Stderr, "(cache) ", log.LstdFlags),
	}
}

func (rc *ReqCache) PurgeExpired(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		rc.store.DeleteBefore(time.Now().Unix())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (rc *ReqCache) CachedFetch(req *http.Request, client *http.Client) (*http.Response, error) {
	if rc == nil {
		return client.Do(req)
	}
	reqBytes, _ := httputil.DumpRequest(req, true)
	md5Hash := md5.Sum(reqBytes)
	reqHash := hex.EncodeToString(md5Hash[:])
	now := time.Now().Unix()
	data, ok := rc.store.GetResponse(reqHash, now)
	if ok {
		res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
		if err == nil {
			return res, nil
		}
		rc.log.Println("Problems decoding cached result", err.Error())
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	// Failures are never cached, the next scroll has to reach upstream again.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, nil
	}
	respBytes, err := httputil.DumpResponse(resp, true)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	rc.log.Println("MISS", req.URL.Host, req.URL.Query().Get("page"))
	rc.store.StoreResponse(reqHash, respBytes, now+rc.ttl)
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(respBytes)), req)
}
