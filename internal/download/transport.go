package download

import (
	"crypto/tls"
	"net/http"
	"os"
	"strings"
)

var proxyEnvVars = [...]string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
	"ALL_PROXY",
	"all_proxy",
}

// NewTransport builds the HTTP transport shared by the protocol client and
// the downloader: proxy from flag or environment, TLS 1.2 minimum, optional
// certificate verification bypass for intercepting proxies.
func NewTransport(proxy string, insecure bool) *http.Transport {
	transport := &http.Transport{
		Proxy:             GetProxy(proxy),
		ForceAttemptHTTP2: true,
	}

	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		return transport
	}

	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return transport
}

// HasConfiguredProxy reports whether a proxy is set by flag or environment.
func HasConfiguredProxy(proxy string) bool {
	if strings.TrimSpace(proxy) != "" {
		return true
	}

	for _, key := range proxyEnvVars {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}

	return false
}
