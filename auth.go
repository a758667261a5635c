package main

import (
	"crypto/subtle"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/apibillme/cache"
)

const apiKeyHeader string = "X-Api-Key"

// KeyChecker verifies the static API key against an argon2id hash. Keys that
// passed once are remembered for an hour so requests skip the hash.
type KeyChecker struct {
	hash     string
	log      *log.Logger
	keyCache cache.Cache
}

// NewKeyChecker returns nil for an empty hash; a nil checker accepts all keys.
func NewKeyChecker(hash string) *KeyChecker {
	if hash == "" {
		return nil
	}
	return &KeyChecker{
		hash:     hash,
		log:      log.New(os.Stderr, "(auth) ", log.LstdFlags),
		keyCache: cache.New(16, cache.WithTTL(1*time.Hour)),
	}
}

func (kc *KeyChecker) TestKey(key string) bool {
	if kc == nil {
		return true
	}
	if key == "" {
		return false
	}
	known, ok := kc.keyCache.Get(kc.hash)
	if ok && 1 == subtle.ConstantTimeCompare([]byte(known.(string)), []byte(key)) {
		return true
	}
	match, err := argon2id.ComparePasswordAndHash(key, kc.hash)
	if err != nil {
		kc.log.Println("Error comparing key hashes", err.Error())
		return false
	}
	if match {
		kc.keyCache.Set(kc.hash, key)
	}
	return match
}
