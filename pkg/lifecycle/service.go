package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilnproject/kiln/internal/logger"
	"github.com/kilnproject/kiln/pkg/metrics"
	"github.com/kilnproject/kiln/pkg/server"
	"github.com/kilnproject/kiln/pkg/templates"
	"github.com/kilnproject/kiln/pkg/watch"
)

// Options configures a Service run.
type Options struct {
	Version   string
	Server    server.Config
	Templates templates.Config

	// Watch enables hot template reloads. When setup fails the service
	// logs the failure and serves the initial snapshot unchanged.
	Watch bool

	// CoalesceWindow bounds how long change events are batched before a
	// reload. Zero selects the source default.
	CoalesceWindow time.Duration
}

// Service runs the whole process: template provider, watch loop, HTTP
// server, and shutdown handling.
type Service struct {
	opts     Options
	instance string
	shutdown *ShutdownCoordinator

	provider *templates.Provider
	watcher  *watch.MultiRootWatcher
}

// New validates the shutdown configuration and builds the service.
// A SignalInstallError here is fatal; nothing has started yet.
func New(opts Options) (*Service, error) {
	shutdown, err := NewShutdownCoordinator()
	if err != nil {
		return nil, err
	}

	return &Service{
		opts:     opts,
		instance: uuid.NewString(),
		shutdown: shutdown,
	}, nil
}

// Instance returns the unique ID of this service run, used to tell
// restarts apart in aggregated logs.
func (s *Service) Instance() string {
	return s.instance
}

// Run serves until a termination signal, Shutdown, or a fatal server
// error. Template load failure is fatal: a server with nothing to render
// must not come up. Watch setup failure is not: the service runs with the
// snapshot frozen at startup.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	provider, err := templates.Load(s.opts.Templates)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	s.provider = provider
	metrics.SetTemplateGeneration(provider.Generation())

	logger.Info("templates loaded",
		"instance", s.instance,
		logger.KeyGeneration, provider.Generation(),
		logger.KeyTemplates, len(provider.Current().Names()),
	)

	if s.opts.Watch {
		s.startWatch(ctx, provider)
		defer s.stopWatch()
	}

	s.shutdown.Start()
	defer s.shutdown.Stop()

	srv := server.NewServer(s.opts.Server, provider, s.opts.Version)

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Start(serveCtx) }()

	select {
	case <-s.shutdown.Done():
		logger.Info("draining in-flight requests")
		stopServe()
		return <-serverDone
	case <-ctx.Done():
		stopServe()
		return <-serverDone
	case err := <-serverDone:
		// Listener failure; shutdown was never requested
		return err
	}
}

// Shutdown requests a graceful stop, as if a termination signal arrived.
func (s *Service) Shutdown() {
	s.shutdown.Trigger()
}

// Provider exposes the template provider once Run has loaded it.
func (s *Service) Provider() *templates.Provider {
	return s.provider
}

// startWatch wires the watcher and reload loop. Failures are logged and
// absorbed: the caller keeps serving the startup snapshot.
func (s *Service) startWatch(ctx context.Context, provider *templates.Provider) {
	source := watch.NewFSSource(s.opts.CoalesceWindow)
	watcher, err := watch.NewMultiRootWatcher(ctx, source, provider.WatchRoots())
	if err != nil {
		logger.Warn("template watch setup failed, hot reload disabled",
			logger.KeyError, err,
		)
		return
	}
	s.watcher = watcher

	watcher.Start(ctx)
	coordinator := watch.NewReloadCoordinator(watcher, provider)
	go func() {
		// Run logs stream failures itself; the server keeps serving the
		// last good snapshot either way.
		_ = coordinator.Run(ctx)
	}()

	logger.Info("template watch started", "roots", watcher.Roots())
}

func (s *Service) stopWatch() {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.Close(); err != nil {
		logger.Warn("closing template watch", logger.KeyError, err)
	}
}
