package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dockhand-build/dockhand/internal/engine"
	pipelineerrors "github.com/dockhand-build/dockhand/internal/errors"
	"github.com/dockhand-build/dockhand/internal/pipeline"
	"github.com/dockhand-build/dockhand/internal/recipe"
)

// SessionConfig configures a watch session.
type SessionConfig struct {
	// Dir is the project root.
	Dir string

	// Port serves the WebSocket status endpoint.
	Port int

	// Patterns and Ignored tune which files trigger rebuilds.
	Patterns []string
	Ignored  []string

	// NewEngine constructs the engine for each build. Nil uses the
	// engine the recipe names.
	NewEngine func(r *recipe.Recipe) (engine.Engine, error)

	Log *zap.Logger
}

// Session ties the file watcher, the status server, and the pipeline
// together: every relevant change reruns the whole build, and clients
// see each stage as it happens.
type Session struct {
	cfg     SessionConfig
	watcher *FileWatcher
	status  *StatusServer
	httpSrv *http.Server
	log     *zap.Logger

	// One build at a time; changes during a build queue behind it.
	buildMu sync.Mutex
}

// NewSession creates a watch session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.NewEngine == nil {
		cfg.NewEngine = func(r *recipe.Recipe) (engine.Engine, error) {
			eng := engine.NewCLIEngine(r.Engine, engine.OutputStreams{}, cfg.Log)
			if err := eng.Available(); err != nil {
				return nil, err
			}
			return eng, nil
		}
	}

	s := &Session{
		cfg:    cfg,
		status: NewStatusServer(cfg.Log),
		log:    cfg.Log,
	}

	watcher, err := NewFileWatcher(cfg.Dir, cfg.Patterns, cfg.Ignored, cfg.Log, func(files []string) error {
		s.Rebuild(context.Background(), files)
		return nil
	})
	if err != nil {
		s.status.Close()
		return nil, err
	}
	s.watcher = watcher

	return s, nil
}

// Start begins watching and serving status, then runs an initial build.
func (s *Session) Start() error {
	if err := s.watcher.Start(); err != nil {
		return err
	}

	if s.cfg.Port > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", s.status.HandleWebSocket)
		s.httpSrv = &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", s.cfg.Port),
			Handler: mux,
		}
		go func() {
			if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("status server failed", zap.Error(err))
			}
		}()
	}

	go s.Rebuild(context.Background(), nil)

	return nil
}

// Stop shuts the session down.
func (s *Session) Stop() error {
	err := s.watcher.Stop()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := s.httpSrv.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}

	s.status.Close()
	return err
}

// Status exposes the status server, mainly for tests and for embedding
// the /ws handler elsewhere.
func (s *Session) Status() *StatusServer {
	return s.status
}

// Rebuild runs the whole pipeline once. The recipe is reloaded every
// time so edits to dockhand.yml are picked up like any other change.
func (s *Session) Rebuild(ctx context.Context, files []string) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	start := time.Now()
	s.status.NotifyBuilding(files)

	r, err := recipe.Load(s.cfg.Dir)
	if err != nil {
		s.notifyFailure(err)
		return
	}
	if errs := r.Validate(); errs.HasErrors() {
		s.notifyFailure(errs)
		return
	}

	eng, err := s.cfg.NewEngine(r)
	if err != nil {
		s.notifyFailure(err)
		return
	}

	b := pipeline.NewBuild(s.cfg.Dir, r, eng, s.log)
	runner := pipeline.NewRunner(pipeline.NewStandardGraph(), s.log)
	runner.Subscribe(pipeline.NotifierFunc(func(e pipeline.Event) {
		if e.Type == pipeline.EventStageStarted {
			s.status.NotifyStage(e.Stage)
		}
	}))

	if err := runner.Run(ctx, b); err != nil {
		s.notifyFailure(err)
		return
	}

	s.status.NotifySuccess(b.ImageRef, time.Since(start))
}

func (s *Session) notifyFailure(err error) {
	var list pipelineerrors.List
	var single pipelineerrors.PipelineError

	switch {
	case errors.As(err, &list) && len(list) > 0:
		s.status.NotifyError(ErrorInfoFrom(list[0]))
	case errors.As(err, &single):
		s.status.NotifyError(ErrorInfoFrom(single))
	default:
		s.status.NotifyError(&ErrorInfo{Message: err.Error()})
	}

	s.log.Error("watch build failed", zap.Error(err))
}
