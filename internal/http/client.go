package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/studiopipe/kitsu-fetch/internal/config"
	"github.com/studiopipe/kitsu-fetch/internal/constants"
	"github.com/studiopipe/kitsu-fetch/internal/logging"
)

// CreateOptimizedClient creates the HTTP client used for file downloads and
// mirror uploads, on top of ConfigureHTTPClient's proxy handling.
//
// Key features:
//   - Short connect timeout (cfg.ConnectTimeout) but no overall timeout; large
//     media bodies are bounded by stall detection in the download engine
//   - Response headers must arrive within cfg.ReadTimeout
//   - Larger idle pool so concurrent workers reuse connections
//   - Compression disabled (media is already compressed, and Content-Length
//     must describe the bytes written to disk)
//   - HTTP/2 unless a proxy is active or DISABLE_HTTP2=true
//
// Redirects are followed by the default policy.
func CreateOptimizedClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM negotiator wraps the transport; keep it untouched
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 256
	tr.MaxIdleConnsPerHost = 64
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.ResponseHeaderTimeout = cfg.ReadTimeout
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true

	_ = http2.ConfigureTransport(tr)

	// Proxies often have issues with HTTP/2 multiplexing, causing mid-transfer failures
	proxyActive := false
	switch cfg.ProxyMode {
	case "no-proxy", "":
	case "system":
		proxyActive = os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		proxyActive = cfg.ProxyHost != ""
	}

	if os.Getenv("DISABLE_HTTP2") == "true" || (proxyActive && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}
