package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

// NewCachingTransport wraps base with an HTTP cache honouring the server's
// Cache-Control and ETag headers, so an unchanged menu is revalidated with a
// 304 instead of being downloaded again. With a
// cacheDir the cache survives between CLI runs; otherwise it lives in memory.
func NewCachingTransport(cacheDir string, base http.RoundTripper) http.RoundTripper {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	t := httpcache.NewTransport(cache)
	t.Transport = base
	return t
}
