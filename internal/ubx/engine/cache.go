package engine

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/edgecomet/ubx/internal/ubx/hashing"
	"github.com/edgecomet/ubx/internal/ubx/matcher"
	"github.com/edgecomet/ubx/internal/ubx/rule"
)

// cacheKey identifies one decision worth memoizing: the document/request
// eTLD+1 pair, type, party, scheme, and a URL fingerprint (spec.md §5
// "decision cache... keyed by document+request eTLD+1, type, party,
// scheme, and a URL fingerprint").
type cacheKey struct {
	docETLD1, reqETLD1 string
	reqType            rule.ResourceType
	thirdParty         bool
	scheme             string
	fingerprint        uint64
}

// decisionCache is a bounded LRU of recent match outcomes, owned by
// Engine. It is cleared on every snapshot swap so a decision cached
// against a retired snapshot can never be served after the swap, per
// spec.md §5 "the decision cache must be invalidated on every swap."
type decisionCache struct {
	lru *lru.Cache
}

func newDecisionCache(size int) *decisionCache {
	c, err := lru.New(size)
	if err != nil {
		c, _ = lru.New(1)
	}
	return &decisionCache{lru: c}
}

func keyFor(ctx *matcher.Context, req matcher.Request) cacheKey {
	return cacheKey{
		docETLD1:    ctx.DocETLD1,
		reqETLD1:    ctx.ReqETLD1,
		reqType:     req.Type,
		thirdParty:  ctx.IsThirdParty,
		scheme:      ctx.URL.Scheme,
		fingerprint: hashing.FingerprintURL(req.URL),
	}
}

func (c *decisionCache) get(ctx *matcher.Context, req matcher.Request) (matcher.Decision, bool) {
	v, ok := c.lru.Get(keyFor(ctx, req))
	if !ok {
		return matcher.Decision{}, false
	}
	return v.(matcher.Decision), true
}

func (c *decisionCache) put(ctx *matcher.Context, req matcher.Request, d matcher.Decision) {
	c.lru.Add(keyFor(ctx, req), d)
}

func (c *decisionCache) clear() {
	c.lru.Purge()
}
