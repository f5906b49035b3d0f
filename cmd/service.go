package cmd

import (
	"fmt"
	"os"

	"github.com/shl518/vchat/internal/chat"
	"github.com/shl518/vchat/internal/proxy"
	"github.com/shl518/vchat/internal/usage"
	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/config"
	"github.com/shl518/vchat/internal/vchat/controller"
	"github.com/shl518/vchat/internal/vchat/session"
	"github.com/shl518/vchat/internal/worker"
)

// toast prints notifications on stderr.
var toast = vchat.NotifierFunc(func(message string) {
	fmt.Fprintf(os.Stderr, "! %s\n", message)
})

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newProxyClient(cfg *config.Config) *proxy.Client {
	return proxy.NewClient(cfg.ProxyURL, cfg, nil, logger)
}

func newWorkerClient(cfg *config.Config) *worker.Client {
	decoder, err := worker.DecoderByName(cfg.WorkerDecoder)
	if err != nil {
		logger.Warn("falling back to the repairing decoder", "error", err)
		decoder = worker.RepairDecoder{}
	}
	return worker.NewClient(worker.ClientConfig{
		BaseURL:        cfg.WorkerURL,
		RequestTimeout: cfg.RequestTimeout,
		ChunkTimeout:   cfg.ChunkTimeout,
		Decoder:        decoder,
		Logger:         logger,
	})
}

// newChatService wires the chat service for cfg.
func newChatService(cfg *config.Config, registry *controller.Registry) *chat.Service {
	return chat.NewService(newProxyClient(cfg), newWorkerClient(cfg), cfg, registry, logger)
}

func newUsageReporter(cfg *config.Config) *usage.Reporter {
	return usage.NewReporter(newProxyClient(cfg), toast, logger)
}

// openStore returns the session store in the default directory.
func openStore() (*session.Store, error) {
	dir, err := session.DefaultDir()
	if err != nil {
		return nil, err
	}
	return session.NewStore(dir), nil
}
