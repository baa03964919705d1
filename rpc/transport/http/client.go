package http

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/uorm/rpc/common"
	"github.com/ValentinKolb/uorm/rpc/transport"
)

// NewHttpClientTransport creates a client transport that posts requests to /{shardId}
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		if !strings.Contains(server, "://") {
			server = "http://" + server
		}
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		parsedURLs[i] = parsedURL
	}

	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(10, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.serverURLs = parsedURLs
	t.counter.Store(0)
	t.retryCount = max(1, config.Transport.RetryCount)

	return nil
}

func (t *httpClientTransport) Send(shardId uint64, req []byte) (resp []byte, err error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	backoffMs := 50
	for i := 0; i < t.retryCount; i++ {
		// round-robin, every retry goes to the next server
		idx := t.counter.Add(1) % uint32(len(t.serverURLs))
		requestURL := fmt.Sprintf("%s/%d", strings.TrimRight(t.serverURLs[idx].String(), "/"), shardId)

		resp, err = t.post(requestURL, req)
		if err == nil {
			return resp, nil
		}
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, t.retryCount, requestURL, err)

		if i < t.retryCount-1 {
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}
	return nil, err
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.serverURLs = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// post sends one request, the body reader is created per attempt
func (t *httpClientTransport) post(requestURL string, req []byte) ([]byte, error) {
	httpRequest, err := http.NewRequest(http.MethodPost, requestURL, bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	return io.ReadAll(httpResponse.Body)
}
