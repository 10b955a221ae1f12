package services

// fetchOutcome memoizes one source fetch. Exactly one of payload and err is
// set. Failures are cached too: if a shared endpoint is down, the first
// location pays for the retries and the rest reuse the verdict.
type fetchOutcome struct {
	payload any
	err     error
}

// fetchCache deduplicates network calls inside a single cycle, keyed by
// endpoint URL. Locations at the same spot often share endpoints, and the
// providers rate-limit aggressively. The cache lives for one cycle and the
// orchestrator runs cycles one at a time, so access needs no locking.
type fetchCache struct {
	outcomes map[string]fetchOutcome
	hits     int
}

func newFetchCache() *fetchCache {
	return &fetchCache{outcomes: make(map[string]fetchOutcome)}
}

func (c *fetchCache) get(url string) (fetchOutcome, bool) {
	out, ok := c.outcomes[url]
	if ok {
		c.hits++
	}
	return out, ok
}

func (c *fetchCache) put(url string, out fetchOutcome) {
	c.outcomes[url] = out
}

// stats reports distinct fetches issued and cache hits, for cycle logging.
func (c *fetchCache) stats() (fetches, hits int) {
	return len(c.outcomes), c.hits
}
