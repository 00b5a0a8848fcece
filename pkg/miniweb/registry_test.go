package miniweb

import "testing"

func TestRegistryResolveExactMatch(t *testing.T) {
	var reg Registry
	var called bool
	reg.Register("GET", "/status", func(s *Session) { called = true }, nil)

	route, wildcard := reg.Resolve("GET", "/status")
	if route == nil {
		t.Fatalf("expected a route match")
	}
	if wildcard != "" {
		t.Errorf("expected empty wildcard for exact match, got %q", wildcard)
	}
	route.Handler(nil)
	if !called {
		t.Errorf("expected handler to be reachable via resolved route")
	}
}

func TestRegistryResolveWildcard(t *testing.T) {
	var reg Registry
	reg.Register("GET", "/files/*", nil, nil)

	tests := []struct {
		name       string
		url        string
		wantMatch  bool
		wantCapture string
	}{
		{"plain capture", "/files/a.txt", true, "a.txt"},
		{"nested path capture", "/files/sub/dir/a.txt", true, "sub/dir/a.txt"},
		{"empty capture rejected", "/files/", false, ""},
		{"no prefix match", "/other/a.txt", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, wildcard := reg.Resolve("GET", tt.url)
			if tt.wantMatch && route == nil {
				t.Fatalf("expected a match for %q", tt.url)
			}
			if !tt.wantMatch && route != nil {
				t.Fatalf("expected no match for %q, got wildcard %q", tt.url, wildcard)
			}
			if tt.wantMatch && wildcard != tt.wantCapture {
				t.Errorf("wildcard = %q, want %q", wildcard, tt.wantCapture)
			}
		})
	}
}

func TestRegistryResolveStripsQueryString(t *testing.T) {
	var reg Registry
	reg.Register("GET", "/search", nil, nil)

	route, _ := reg.Resolve("GET", "/search?q=foo&page=2")
	if route == nil {
		t.Fatalf("expected query string to be excluded from matching")
	}
}

func TestRegistryResolveFirstMatchWins(t *testing.T) {
	var reg Registry
	first := reg.Register("GET", "/a*", nil, nil)
	reg.Register("GET", "/ab", nil, nil)

	route, _ := reg.Resolve("GET", "/ab")
	if route != first {
		t.Errorf("expected registration-order first match to win")
	}
}

func TestRegistryPostAutoListensContentLength(t *testing.T) {
	var reg Registry
	var headers ListenHeaderSet
	reg.Register("POST", "/upload", nil, &headers)

	if !headers.Find([]byte("Content-Length")) {
		t.Errorf("expected POST registration to auto-listen Content-Length")
	}
}

func TestRouteRecordCompletionAccumulates(t *testing.T) {
	route := &Route{Method: "GET", Prefix: "/x"}
	route.recordCompletion(0, 100)
	route.recordCompletion(0, 300)

	if got := route.RequestCount(); got != 2 {
		t.Errorf("RequestCount = %d, want 2", got)
	}
	if got := route.EWMABytesPerRequest(); got != 200 {
		t.Errorf("EWMABytesPerRequest = %d, want 200", got)
	}
}

func TestRouteRecordCompletionHalvesOnOverflow(t *testing.T) {
	route := &Route{Method: "GET", Prefix: "/x"}
	const overflowThreshold = 1 << 30

	route.recordCompletion(0, overflowThreshold)

	if route.requestCountMetric >= overflowThreshold {
		t.Errorf("requestCountMetric did not halve: %d", route.requestCountMetric)
	}
	if route.dataSentMetric >= overflowThreshold {
		t.Errorf("dataSentMetric did not halve: %d", route.dataSentMetric)
	}
	// requestCountMetric halves from 1 to 0 and is floored back to 1, so
	// the ratio becomes dataSentMetric/1 after a single halving pass.
	if got := route.EWMABytesPerRequest(); got != overflowThreshold/2 {
		t.Errorf("EWMABytesPerRequest = %d, want %d", got, overflowThreshold/2)
	}
}
