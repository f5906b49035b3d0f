// Package worker streams generations from a vicuna (FastChat) model worker.
package worker

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shl518/vchat/internal/vchat"
)

const (
	// GeneratePath is the worker's streaming generation endpoint.
	GeneratePath = "/worker_generate_stream"

	// UserAgent identifies the client to the worker.
	UserAgent = "fastchat Client"

	// DefaultTimeout applies both until headers arrive and between chunks.
	DefaultTimeout = 60 * time.Second
)

// ClientConfig holds configuration options for the worker client.
type ClientConfig struct {
	// BaseURL is the worker address (e.g. http://192.168.1.101:21002)
	BaseURL string

	// RequestTimeout bounds the wait for response headers (default: 60s)
	RequestTimeout time.Duration

	// ChunkTimeout bounds the wait for each chunk (default: 60s)
	ChunkTimeout time.Duration

	// Decoder parses stream frames (default: RepairDecoder)
	Decoder ChunkDecoder

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client opens generation streams against a single worker.
// It is safe for concurrent use; every Open call gets its own Stream.
//
// Example:
//
//	client := worker.NewClient(worker.ClientConfig{BaseURL: cfg.WorkerURL})
//	stream := client.Open(ctx, req, worker.OpenOptions{})
//	defer stream.Close()
//	for {
//	    ev, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a worker client, filling defaults for zero values.
func NewClient(config ClientConfig) *Client {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultTimeout
	}
	if config.ChunkTimeout == 0 {
		config.ChunkTimeout = DefaultTimeout
	}
	if config.Decoder == nil {
		config.Decoder = RepairDecoder{}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := config.HTTPClient
	if httpClient == nil {
		// no client-wide timeout: streams are bounded by the two timers
		httpClient = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{config: config, httpClient: httpClient, logger: logger}
}

// OpenOptions customizes a single stream.
type OpenOptions struct {
	// OnController receives the stream's cancel handle once the worker has
	// answered with a 2xx status, before the first chunk is read.
	OnController func(cancel context.CancelFunc)
}

// Open sends req to the worker and returns the stream of its events.
// The request is sent from a background goroutine; Open does not block.
func (c *Client) Open(ctx context.Context, req vchat.GenerationRequest, opts OpenOptions) *Stream {
	s := newStream(ctx)
	go s.run(c, req, opts)
	return s
}
