package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"tasktracker/internal/engine"
	"tasktracker/internal/telemetry"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Version  string
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Tracer   trace.Tracer
}

// apiError is the error envelope: {"detail": "..."}.
type apiError struct {
	status int
	Detail string `json:"detail" example:"Complete previous tasks before unlocking this item."`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Detail }

type server struct {
	engine engine.Engine
	logger *slog.Logger
}

// New returns an HTTP handler exposing the progress API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, detail(msg, errs))
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		// Request validation problems are client errors like any other bad input.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, detail(msg, errs))
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestID)
	router.Use(instrument(logger, cfg.Metrics, tracer))

	hcfg := huma.DefaultConfig("Task Tracker API", version)
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	hcfg.SchemasPath = ""
	hcfg.CreateHooks = nil
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &server{engine: cfg.Engine, logger: logger}
	registerHealth(group)
	s.registerProgress(group)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}
	return router, nil
}

func newAPIError(status int, msg string) huma.StatusError {
	return &apiError{status: status, Detail: msg}
}

func detail(msg string, errs []error) string {
	if len(errs) == 0 {
		return msg
	}
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, err.Error())
		}
	}
	if len(parts) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(parts, "; ")
}

// handleError maps engine errors to the envelope: validation failures are the
// caller's problem (400), anything else is a server fault whose cause is
// logged but not returned.
func (s *server) handleError(ctx context.Context, err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, ve.Message)
	}
	s.logger.ErrorContext(ctx, "request failed", "error", err, "request_id", requestIDFrom(ctx))
	return newAPIError(http.StatusInternalServerError, "internal error")
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Service health probe",
	}, func(ctx context.Context, _ *struct{}) (*statusOutput, error) {
		return ok(), nil
	})
}

func (s *server) registerProgress(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-progress",
		Method:      http.MethodGet,
		Path:        "/progress",
		Summary:     "Full progress hierarchy",
		Description: "All stages, repositories and tasks with completion metrics and unlock state.",
	}, func(ctx context.Context, _ *struct{}) (*summaryOutput, error) {
		summary, err := s.engine.FetchProgressSummary(ctx)
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return &summaryOutput{Body: summary}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "set-task-progress",
		Method:        http.MethodPost,
		Path:          "/progress/{repo_id}/{task_id}",
		Summary:       "Update a task's completion state",
		Description:   "Completing requires every earlier task of the repository to be complete and a non-blank link. Marking incomplete clears the link.",
		DefaultStatus: http.StatusOK,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *updateProgressInput) (*statusOutput, error) {
		err := s.engine.UpdateTaskProgress(ctx, engine.UpdateTaskOptions{
			RepoID:    input.RepoID,
			TaskID:    input.TaskID,
			Completed: input.Body.Completed,
			Link:      input.Body.Link,
		})
		if err != nil {
			return nil, s.handleError(ctx, err)
		}
		return ok(), nil
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		doc  []byte
	)
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { doc, _ = json.Marshal(api.OpenAPI()) })
		w.Header().Set("Content-Type", "application/json")
		w.Write(doc)
	})
}
