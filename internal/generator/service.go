package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/apitestgen/internal/config"
	"github.com/yourorg/apitestgen/internal/metrics"
	"github.com/yourorg/apitestgen/internal/spec"
	"github.com/yourorg/apitestgen/internal/store"
	"github.com/yourorg/apitestgen/pkg/types"
)

// LLMConfig is an alias of config.LLMConfig.
type LLMConfig = config.LLMConfig

// ProgressFunc reports generation progress.
type ProgressFunc func(stage string)

// Service runs generation and refinement requests end to end.
type Service struct {
	gateway    Gateway
	store      store.Store
	logger     *slog.Logger
	metrics    *metrics.GenerationMetrics
	tracer     trace.Tracer
	outputDir  string
	onProgress ProgressFunc
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.GenerationMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithOutputDir exports every saved artifact as a file under dir.
func WithOutputDir(dir string) Option {
	return func(s *Service) { s.outputDir = dir }
}

func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) { s.onProgress = fn }
}

func NewService(gw Gateway, st store.Store, opts ...Option) (*Service, error) {
	if gw == nil {
		return nil, errors.New("gateway is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	s := &Service{
		gateway: gw,
		store:   st,
		logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		tracer:  otel.Tracer("apitestgen/generator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type GenerateResult struct {
	Filename       string   `json:"filename"`
	Title          string   `json:"api_title"`
	Code           string   `json:"test_cases"`
	EndpointsCount int      `json:"endpoints_count"`
	Revision       int      `json:"revision"`
	Warnings       []string `json:"warnings"`
}

type RefineResult struct {
	Filename string `json:"filename"`
	Title    string `json:"api_title"`
	Code     string `json:"test_cases"`
	Feedback string `json:"improvements_applied"`
	Revision int    `json:"revision"`
}

// Describe parses content and extracts its API description without calling
// the gateway. The format is taken from filename.
func Describe(ctx context.Context, filename string, content []byte) (*types.APIDescription, []string, error) {
	format := spec.FormatFromFilename(filename)
	doc, err := spec.Normalize(content, format)
	if err != nil {
		return nil, nil, err
	}
	return spec.Extract(doc), spec.Lint(ctx, doc), nil
}

// Generate turns an uploaded spec document into test code and stores both.
// Nothing is persisted unless the gateway returns non-empty code.
func (s *Service) Generate(ctx context.Context, filename string, content []byte) (*GenerateResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, invalidInput(ReasonMissingFilename, "missing filename")
	}

	s.report("parsing spec")
	api, warnings, err := Describe(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		s.logger.Warn("spec lint", "file", filename, "warning", w)
	}

	prompt := RenderPrompt(api)
	s.report(fmt.Sprintf("calling LLM (%d endpoints, ~%d tokens)", len(api.Endpoints), EstimateTokens(prompt)))
	code, err := s.call(ctx, metrics.OpGenerate, prompt)
	if err != nil {
		return nil, err
	}

	s.report("saving artifact")
	upload := &types.Upload{
		ID:       uuid.NewString(),
		Filename: filename,
		Title:    api.Title,
		TitleKey: TitleKey(api.Title),
		Format:   spec.FormatFromFilename(filename),
		Content:  string(content),
	}
	if err := s.store.SaveUpload(upload); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	artifact := &types.Artifact{
		Filename: ArtifactFilename(api.Title),
		Title:    api.Title,
		UploadID: upload.ID,
		Prompt:   prompt,
		Content:  code,
	}
	if err := s.store.SaveArtifact(artifact); err != nil {
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	if err := s.export(artifact.Filename, code); err != nil {
		return nil, err
	}

	s.logger.Info("tests generated", "file", filename, "artifact", artifact.Filename,
		"endpoints", len(api.Endpoints), "revision", artifact.Revision)
	if warnings == nil {
		warnings = []string{}
	}
	return &GenerateResult{
		Filename:       artifact.Filename,
		Title:          api.Title,
		Code:           code,
		EndpointsCount: len(api.Endpoints),
		Revision:       artifact.Revision,
		Warnings:       warnings,
	}, nil
}

// Refine applies feedback to a stored artifact. The original prompt is
// rebuilt from the upload whose title matches the artifact filename.
func (s *Service) Refine(ctx context.Context, filename, feedback string) (*RefineResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, invalidInput(ReasonMissingFilename, "missing filename")
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, invalidInput(ReasonEmptyFeedback, "feedback must not be empty")
	}

	artifact, err := s.store.GetArtifact(filename)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidInput(ReasonArtifactNotFound, "test file %s not found", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	title := TitleFromFilename(filename)
	upload, err := s.store.FindUploadByTitleKey(TitleKey(title))
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidInput(ReasonSpecNotFound, "original API spec for %q not found", title)
	}
	if err != nil {
		return nil, fmt.Errorf("find upload: %w", err)
	}

	s.report("rebuilding original prompt")
	doc, err := spec.Normalize([]byte(upload.Content), upload.Format)
	if err != nil {
		return nil, fmt.Errorf("reparse upload %s: %w", upload.ID, err)
	}
	prompt, err := ComposeRefinement(RenderPrompt(spec.Extract(doc)), artifact.Content, feedback)
	if err != nil {
		return nil, err
	}

	s.report(fmt.Sprintf("calling LLM (~%d tokens)", EstimateTokens(prompt)))
	raw, err := s.call(ctx, metrics.OpRefine, prompt)
	if err != nil {
		return nil, err
	}
	code := ExtractCode(raw, TargetLanguage)
	if strings.TrimSpace(code) == "" {
		return nil, &GenerationError{Op: metrics.OpRefine}
	}

	s.report("saving artifact")
	updated, err := s.store.UpdateArtifactContent(filename, code)
	if err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	if err := s.store.SaveRefinement(&types.Refinement{Filename: filename, Feedback: feedback}); err != nil {
		return nil, fmt.Errorf("save refinement: %w", err)
	}
	if err := s.export(filename, code); err != nil {
		return nil, err
	}

	s.logger.Info("tests refined", "artifact", filename, "revision", updated.Revision)
	return &RefineResult{
		Filename: filename,
		Title:    title,
		Code:     code,
		Feedback: feedback,
		Revision: updated.Revision,
	}, nil
}

// Health sends a fixed probe prompt and returns the trimmed reply.
func (s *Service) Health(ctx context.Context) (string, error) {
	out, err := s.call(ctx, metrics.OpHealth, HealthPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// call is the single gateway round trip. Failures are never retried here.
func (s *Service) call(ctx context.Context, op, prompt string) (string, error) {
	tokens := EstimateTokens(prompt)
	ctx, span := s.tracer.Start(ctx, "generator."+op)
	defer span.End()
	span.SetAttributes(attribute.String("operation", op), attribute.Int("prompt.tokens", tokens))

	start := time.Now()
	s.metrics.RecordStarted(ctx, op, tokens)
	out, err := s.gateway.Generate(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordFailed(ctx, op, "gateway", time.Since(start))
		s.logger.Error("generation failed", "op", op, "error", err)
		return "", &GenerationError{Op: op, Err: err}
	}
	if strings.TrimSpace(out) == "" {
		gerr := &GenerationError{Op: op}
		span.RecordError(gerr)
		span.SetStatus(codes.Error, gerr.Error())
		s.metrics.RecordFailed(ctx, op, "empty_result", time.Since(start))
		s.logger.Error("generation returned empty result", "op", op)
		return "", gerr
	}
	s.metrics.RecordCompleted(ctx, op, time.Since(start))
	span.SetAttributes(attribute.Int("response.chars", len(out)))
	return out, nil
}

func (s *Service) export(name, code string) error {
	if s.outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.outputDir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("export artifact: %w", err)
	}
	return nil
}

func (s *Service) report(msg string) {
	if s.onProgress != nil {
		s.onProgress(msg)
	}
}
