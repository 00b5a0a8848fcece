package miniweb

import (
	"strings"
	"sync"
	"time"
)

// Handler is the capability a registered route exposes to the engine.
// It receives the Session owning the in-flight request/reply and should
// set a response code, add headers, and write a body (owned or shared)
// before returning. See §4.4 and §9 ("Handlers receive a session
// capability exposing the §4.4 API").
type Handler func(s *Session)

// Route is a registered (method, pattern, handler) triple with the
// accumulated metrics described in §4.1. The pattern is authored with at
// most one '*', split at registration time into Prefix/Suffix.
type Route struct {
	Method  string
	Prefix  string
	Suffix  *string // nil => no wildcard, Prefix must match exactly
	Handler Handler

	mu                 sync.Mutex
	requestCount       uint64
	requestCountMetric uint64
	dataSentMetric     uint64
	totalTime          time.Duration
}

// RequestCount returns the number of requests this route has completed.
func (r *Route) RequestCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestCount
}

// TotalTime returns the cumulative handling time for this route.
func (r *Route) TotalTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalTime
}

// EWMABytesPerRequest returns the running average bytes sent per request,
// derived from the fixed-point request_count_metric/data_sent_metric pair
// described in §4.1. Returns 0 before any request completes.
func (r *Route) EWMABytesPerRequest() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requestCountMetric == 0 {
		return 0
	}
	return r.dataSentMetric / r.requestCountMetric
}

// recordCompletion updates route metrics after a reply has fully flushed.
// Guarded by a mutex because stats() may run concurrently with the single
// event-loop goroutine driving run() — the one legitimate cross-goroutine
// boundary in this otherwise single-threaded design (see SPEC_FULL.md §6
// and the teacher's placeholder lock/unlock stubs this replaces with a
// real, short critical section).
func (r *Route) recordCompletion(elapsed time.Duration, bytesSent uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requestCount++
	r.totalTime += elapsed

	r.requestCountMetric++
	r.dataSentMetric += bytesSent

	// Halve both sides when either crosses 2^30, preserving their ratio
	// and bounding the fixed-point accumulators against overflow.
	const overflowThreshold = 1 << 30
	for r.requestCountMetric >= overflowThreshold || r.dataSentMetric >= overflowThreshold {
		r.requestCountMetric >>= 1
		r.dataSentMetric >>= 1
		if r.requestCountMetric == 0 {
			r.requestCountMetric = 1
		}
	}
}

// Registry stores registered routes in registration order and resolves
// incoming (method, url) pairs to a route. First-match-wins: resolution
// order is registration order (§4.1).
type Registry struct {
	routes []*Route
}

// Register splits pattern at its first '*' into Prefix/Suffix and appends
// a new Route. Registering a POST route implicitly listens for
// Content-Length (the body-length header every POST body-bearing request
// needs retained).
func (reg *Registry) Register(method, pattern string, handler Handler, headers *ListenHeaderSet) *Route {
	route := &Route{
		Method:  method,
		Handler: handler,
	}

	if idx := strings.IndexByte(pattern, '*'); idx >= 0 {
		prefix := pattern[:idx]
		suffix := pattern[idx+1:]
		route.Prefix = prefix
		route.Suffix = &suffix
	} else {
		route.Prefix = pattern
	}

	if method == "POST" && headers != nil {
		headers.Listen("Content-Length")
	}

	reg.routes = append(reg.routes, route)
	return route
}

// Resolve returns the first registered route whose method matches exactly
// and whose pattern matches url (trimmed at '?', per §4.1). Returns nil if
// no route matches.
func (reg *Registry) Resolve(method, url string) (*Route, string) {
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		url = url[:idx]
	}

	for _, route := range reg.routes {
		if route.Method != method {
			continue
		}

		if route.Suffix == nil {
			if url == route.Prefix {
				return route, ""
			}
			continue
		}

		suffix := *route.Suffix
		if len(url) <= len(route.Prefix)+len(suffix) {
			continue
		}
		if !strings.HasPrefix(url, route.Prefix) || !strings.HasSuffix(url, suffix) {
			continue
		}
		wildcard := url[len(route.Prefix) : len(url)-len(suffix)]
		return route, wildcard
	}

	return nil, ""
}

// Routes returns the registered routes in registration order, for stats().
func (reg *Registry) Routes() []*Route {
	return reg.routes
}
