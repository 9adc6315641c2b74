package container

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go-vision-lens/internal/config"
	"go-vision-lens/internal/factory"
	"go-vision-lens/internal/ingest"
	"go-vision-lens/internal/interpreter"
	"go-vision-lens/internal/logger"
	"go-vision-lens/internal/observer"
	"go-vision-lens/internal/offline"
	"go-vision-lens/internal/presenter"
	"go-vision-lens/internal/service"
	"go-vision-lens/internal/session"
	"go-vision-lens/internal/storage"
	"go-vision-lens/internal/strategy"
	"go-vision-lens/internal/transport"
	"go-vision-lens/internal/vision"
	"go-vision-lens/internal/web"
)

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	cacheStorage    storage.CacheStorage
	worker          *offline.Worker
	visionClient    *vision.Client
	registry        *vision.Registry
	sessions        *session.Manager
	metrics         *observer.MetricsObserver
	analysisService service.AnalysisService
	handler         http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger.Configure(cfg.LogLevel)

	factories := factory.NewComponentFactory(cfg)

	instruction, err := factories.InstructionFactory.CreateInstruction(cfg.InstructionMode)
	if err != nil {
		return nil, err
	}

	registry, err := vision.NewRegistry(cfg.Models, cfg.DefaultModel)
	if err != nil {
		return nil, err
	}

	c := &Container{
		config:   cfg,
		registry: registry,
	}

	// Vision traffic goes through the offline worker when one is configured,
	// which always hands it to the network untouched.
	var network http.RoundTripper = storage.NewNetworkTransport()
	var assets http.Handler = web.Handler()
	if cfg.AssetOrigin != "" {
		visionURL, err := url.Parse(cfg.VisionBaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid vision base URL: %w", err)
		}

		store, err := factories.StorageFactory.CreateStorage(ctx, factory.StorageType(cfg.CacheBackend))
		if err != nil {
			return nil, fmt.Errorf("failed to create cache storage: %w", err)
		}
		worker, err := offline.NewWorker(store, network, offline.Options{
			Origin:      cfg.AssetOrigin,
			CacheName:   cfg.CacheName,
			BypassHosts: []string{visionURL.Hostname()},
		})
		if err != nil {
			store.Close()
			return nil, err
		}

		c.cacheStorage = store
		c.worker = worker
		network = worker
		assets = worker.Handler()
	}

	visionClient, err := vision.NewClient(vision.ClientOptions{
		BaseURL:    cfg.VisionBaseURL,
		APIVersion: cfg.VisionAPIVersion,
		Timeout:    cfg.AnalysisTimeout,
		Transport:  network,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.visionClient = visionClient

	c.metrics = observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(c.metrics)

	ingestOpts := ingest.DefaultOptions().
		WithMaxSize(cfg.ImageMaxWidth, cfg.ImageMaxHeight).
		WithQuality(cfg.JPEGQuality)

	c.analysisService, err = service.NewAnalysisService(service.Dependencies{
		Ingester:      ingest.NewIngester(ingestOpts),
		Client:        visionClient,
		Registry:      registry,
		Instructions:  strategy.NewInstructionContext(instruction),
		Interpreter:   interpreter.New(),
		Publisher:     publisher,
		EnvCredential: cfg.GeminiAPIKey,
		Timeout:       cfg.AnalysisTimeout,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	pres, err := presenter.New()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.sessions = session.NewManager(cfg.SessionTTL, registry.DefaultKey())
	c.handler = transport.NewHandler(transport.Dependencies{
		Service:   c.analysisService,
		Sessions:  c.sessions,
		Registry:  registry,
		Presenter: pres,
		Metrics:   c.metrics,
		Assets:    assets,
		Worker:    c.worker,
	}, cfg)

	return c, nil
}

// InstallOfflineCache installs and activates the offline cache. It is a
// no-op when no asset origin is configured.
func (c *Container) InstallOfflineCache(ctx context.Context) error {
	if c.worker == nil {
		return nil
	}
	if err := c.worker.Install(ctx); err != nil {
		return err
	}
	return c.worker.Activate(ctx)
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Sessions returns the session manager
func (c *Container) Sessions() *session.Manager {
	return c.sessions
}

// Worker returns the offline worker, nil when the app shell is embedded
func (c *Container) Worker() *offline.Worker {
	return c.worker
}

// Close releases the cache storage
func (c *Container) Close() error {
	if c.cacheStorage == nil {
		return nil
	}
	return c.cacheStorage.Close()
}
