package llm

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// checkEndpoint enforces encrypted transport. Plain http is accepted only
// for loopback hosts such as a local Ollama.
func checkEndpoint(provider, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Host == "" {
		return nil, &ProviderError{Provider: provider, Kind: KindMalformed, Message: fmt.Sprintf("invalid endpoint %q", raw)}
	}
	switch u.Scheme {
	case "https":
		return u, nil
	case "http":
		if isLoopback(u.Hostname()) {
			return u, nil
		}
	}
	return nil, &ProviderError{
		Provider: provider,
		Kind:     KindMalformed,
		Message:  fmt.Sprintf("refusing insecure endpoint %q; use https", raw),
	}
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
