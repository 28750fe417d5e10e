package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-translate/internal/api"
	"github.com/loqalabs/loqa-translate/internal/audio"
	"github.com/loqalabs/loqa-translate/internal/bus"
	"github.com/loqalabs/loqa-translate/internal/capture"
	"github.com/loqalabs/loqa-translate/internal/config"
	"github.com/loqalabs/loqa-translate/internal/eventstore"
	"github.com/loqalabs/loqa-translate/internal/natsserver"
	"github.com/loqalabs/loqa-translate/internal/router"
	"github.com/loqalabs/loqa-translate/internal/session"
	"github.com/loqalabs/loqa-translate/internal/translate"
	"github.com/loqalabs/loqa-translate/internal/tts"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	readyCh     chan struct{}
	addr        atomic.Value
	wg          sync.WaitGroup

	natsServer *natsserver.EmbeddedServer
	bus        *bus.Client
	events     *eventstore.Store
	session    *session.Controller
	router     *router.Service
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		readyCh: make(chan struct{}),
	}
}

// Ready is closed once the HTTP listener accepts connections.
func (r *Runtime) Ready() <-chan struct{} {
	return r.readyCh
}

// Addr is the bound HTTP address, empty before Ready.
func (r *Runtime) Addr() string {
	addr, _ := r.addr.Load().(string)
	return addr
}

// Session returns the controller once Ready.
func (r *Runtime) Session() *session.Controller {
	return r.session
}

// Start builds every component from config, serves HTTP and blocks until ctx
// is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(ctx, r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := r.startBus(ctx); err != nil {
		return err
	}
	defer r.stopBus()

	r.events, err = eventstore.Open(ctx, r.cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer r.events.Close()

	sessionID := uuid.NewString()
	capability, err := r.newCapture(sessionID)
	if err != nil {
		return err
	}
	translator, err := translate.New(r.cfg.Translate)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	synth, err := tts.New(r.cfg.TTS, r.cfg.Audio.MaxBytes)
	if err != nil {
		return fmt.Errorf("failed to create synthesizer: %w", err)
	}
	store := audio.NewStore(r.cfg.HTTP.PublicURL)

	if err := r.events.AppendSession(ctx, sessionID, r.cfg.Session.SourceLanguage, r.cfg.Session.TargetLanguage); err != nil {
		r.logger.Warn("failed to record session", slog.String("error", err.Error()))
	}
	r.session = session.New(r.cfg.Session, session.Options{
		SessionID:         sessionID,
		Capture:           capability,
		Translator:        translator,
		Synthesizer:       synth,
		Voices:            tts.VoicesFromConfig(r.cfg.TTS),
		Audio:             store,
		Events:            r.events,
		Logger:            r.logger,
		TranslateTimeout:  time.Duration(r.cfg.Translate.TimeoutMS) * time.Millisecond,
		SynthesizeTimeout: time.Duration(r.cfg.TTS.TimeoutMS) * time.Millisecond,
	})
	defer func() {
		if err := r.session.Close(); err != nil {
			r.logger.Warn("session close error", slog.String("error", err.Error()))
		}
	}()

	if r.bus != nil {
		r.router = router.NewService(r.bus, r.session, r.logger)
		if err := r.router.Start(); err != nil {
			return fmt.Errorf("failed to start router: %w", err)
		}
		defer r.router.Close()
	}

	mux := api.NewRouter(api.NewHandler(r.session, store, r.events, r.cfg.HTTP.AllowedOrigins, r.logger))
	mux.Get("/healthz", r.handleHealth)
	mux.Get("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	r.addr.Store(listener.Addr().String())
	r.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.ready.Store(true)
	close(r.readyCh)
	r.logger.Info("runtime started",
		slog.String("addr", listener.Addr().String()),
		slog.String("session_id", sessionID),
		slog.String("capture", r.cfg.Capture.Mode),
		slog.String("translate", r.cfg.Translate.Mode),
		slog.String("tts", r.cfg.TTS.Mode),
	)

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()
	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	if !r.cfg.Bus.Enabled {
		return nil
	}
	busCfg := r.cfg.Bus
	ns, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	r.natsServer = ns
	if ns != nil {
		busCfg.Servers = []string{ns.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		r.natsServer.Shutdown()
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	r.bus = client
	return nil
}

func (r *Runtime) stopBus() {
	r.bus.Close()
	r.natsServer.Shutdown()
}

func (r *Runtime) newCapture(sessionID string) (capture.Capability, error) {
	settings := capture.Settings{
		Continuous:     r.cfg.Capture.Continuous,
		InterimResults: r.cfg.Capture.InterimResults,
	}
	switch r.cfg.Capture.Mode {
	case "", "none":
		return capture.NewNoop(), nil
	case "mock":
		step := time.Duration(r.cfg.Capture.MockStepMS) * time.Millisecond
		return capture.NewMock(r.cfg.Capture.MockPhrases, step, settings), nil
	case "bus":
		if r.bus == nil {
			return nil, errors.New("capture mode bus requires the bus")
		}
		return capture.NewBus(r.bus, sessionID, settings, r.logger), nil
	default:
		return nil, fmt.Errorf("unknown capture mode %q", r.cfg.Capture.Mode)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.router == nil || r.router.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
