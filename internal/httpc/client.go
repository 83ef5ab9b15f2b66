// Package httpc provides the shared HTTP client used for upstream APIs.
// Use it instead of http.DefaultClient so every call has a timeout and
// identifies itself.
package httpc

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"
)

// Product and Version identify Grace in the User-Agent header.
const (
	Product = "GraceAssistant"
	Version = "1.0.0"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Client is the shared client with DefaultTimeout.
var Client = NewClient(DefaultTimeout)

// NewClient creates a client with its own transport and the given overall
// request timeout. Zero means no timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(),
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Get performs a GET with the shared client.
func Get(url string) (*http.Response, error) {
	return Client.Get(url)
}

// Post performs a POST of body with the shared client.
func Post(url, contentType string, body []byte) (*http.Response, error) {
	return Client.Post(url, contentType, bytes.NewReader(body))
}

// Do performs a request with the shared client.
func Do(req *http.Request) (*http.Response, error) {
	return Client.Do(req)
}

// UserAgent returns the User-Agent sent to upstream APIs, tagged with the
// host operating system.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Product, Version, runtime.GOOS)
}
