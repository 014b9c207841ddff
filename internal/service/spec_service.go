package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"blueprint-api/internal/generator"
	"blueprint-api/internal/model"
	"blueprint-api/pkg/apierror"
)

const (
	msgSpecNotFound      = "Specification not found"
	msgBlueprintNotFound = "Blueprint not found"
)

type SpecStore interface {
	Create(ctx context.Context, spec model.Spec) error
	FindForUser(ctx context.Context, id string, userID string) (model.Spec, error)
	ListRecentForUser(ctx context.Context, userID string, limit int) ([]model.Spec, error)
	UpdateDocument(ctx context.Context, id string, userID string, doc model.Document) (model.Spec, error)
}

// Generator produces and implements specification documents.
type Generator interface {
	Configured() bool
	GenerateSpec(ctx context.Context, idea string) (model.Document, error)
	RefineSpec(ctx context.Context, current model.Document, instruction string) (model.Document, error)
	GenerateImplementation(ctx context.Context, doc model.Document, moduleName string) (model.Implementation, error)
}

type SpecService struct {
	specs     SpecStore
	generator Generator
	now       func() time.Time
}

func NewSpecService(specs SpecStore, gen Generator) *SpecService {
	return &SpecService{
		specs:     specs,
		generator: gen,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate drafts a document for idea and stores it for userID. Nothing is
// stored when generation fails.
func (s *SpecService) Generate(ctx context.Context, userID string, req model.GenerateSpecRequest) (model.Spec, error) {
	req.Idea = strings.TrimSpace(req.Idea)
	if err := validateRequest(req); err != nil {
		return model.Spec{}, err
	}
	if err := s.requireGenerator(); err != nil {
		return model.Spec{}, err
	}

	doc, err := s.generator.GenerateSpec(ctx, req.Idea)
	if err != nil {
		return model.Spec{}, generationError(err)
	}

	now := s.now()
	spec := model.Spec{
		ID:        uuid.NewString(),
		UserID:    userID,
		Idea:      req.Idea,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.specs.Create(ctx, spec); err != nil {
		return model.Spec{}, fmt.Errorf("store spec: %w", err)
	}

	slog.Info("spec generated", "spec_id", spec.ID, "user_id", userID, "modules", len(doc.Modules))
	return spec, nil
}

func (s *SpecService) Get(ctx context.Context, userID string, id string) (model.Spec, error) {
	return s.findOwned(ctx, userID, id, msgSpecNotFound)
}

func (s *SpecService) List(ctx context.Context, userID string) ([]model.Spec, error) {
	specs, err := s.specs.ListRecentForUser(ctx, userID, model.SpecListLimit)
	if err != nil {
		return nil, fmt.Errorf("list specs: %w", err)
	}
	if specs == nil {
		specs = []model.Spec{}
	}
	return specs, nil
}

// Refine rewrites the stored document according to feedback. Ownership is
// checked before the feedback is validated.
func (s *SpecService) Refine(ctx context.Context, userID string, id string, req model.RefineSpecRequest) (model.Spec, error) {
	current, err := s.findOwned(ctx, userID, id, msgBlueprintNotFound)
	if err != nil {
		return model.Spec{}, err
	}

	req.Feedback = strings.TrimSpace(req.Feedback)
	if err := validateRequest(req); err != nil {
		return model.Spec{}, err
	}
	if err := s.requireGenerator(); err != nil {
		return model.Spec{}, err
	}

	doc, err := s.generator.RefineSpec(ctx, current.Document, req.Feedback)
	if err != nil {
		return model.Spec{}, generationError(err)
	}

	updated, err := s.specs.UpdateDocument(ctx, current.ID, userID, doc)
	if errors.Is(err, model.ErrSpecNotFound) {
		return model.Spec{}, apierror.NotFound(msgBlueprintNotFound)
	}
	if err != nil {
		return model.Spec{}, fmt.Errorf("update spec: %w", err)
	}

	slog.Info("spec refined", "spec_id", updated.ID, "user_id", userID)
	return updated, nil
}

// GenerateCodeStubs renders an implementation of a stored document. The
// result is returned, never stored.
func (s *SpecService) GenerateCodeStubs(ctx context.Context, userID string, req model.CodeStubRequest) (model.CodeStubs, error) {
	req.SpecID = strings.TrimSpace(req.SpecID)
	req.Language = strings.TrimSpace(req.Language)
	req.Framework = strings.TrimSpace(req.Framework)
	if err := validateRequest(req); err != nil {
		return model.CodeStubs{}, err
	}
	if req.Language == "" {
		req.Language = model.DefaultLanguage
	}

	spec, err := s.findOwned(ctx, userID, req.SpecID, msgSpecNotFound)
	if err != nil {
		return model.CodeStubs{}, err
	}
	if err := s.requireGenerator(); err != nil {
		return model.CodeStubs{}, err
	}

	moduleName := spec.Document.ModuleName()
	impl, err := s.generator.GenerateImplementation(ctx, spec.Document, moduleName)
	if err != nil {
		return model.CodeStubs{}, generationError(err)
	}

	return model.CodeStubs{
		BlueprintID:    spec.ID,
		ModuleName:     moduleName,
		Language:       req.Language,
		Framework:      req.Framework,
		Implementation: impl,
	}, nil
}

func (s *SpecService) findOwned(ctx context.Context, userID string, id string, notFound string) (model.Spec, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return model.Spec{}, apierror.NotFound(notFound)
	}

	spec, err := s.specs.FindForUser(ctx, parsed.String(), userID)
	if errors.Is(err, model.ErrSpecNotFound) {
		return model.Spec{}, apierror.NotFound(notFound)
	}
	if err != nil {
		return model.Spec{}, fmt.Errorf("find spec: %w", err)
	}
	return spec, nil
}

func (s *SpecService) requireGenerator() error {
	if s.generator == nil || !s.generator.Configured() {
		return apierror.Configuration(generator.ErrNotConfigured.Error())
	}
	return nil
}

// generationError maps gateway failures onto API errors.
func generationError(err error) error {
	var parseErr *generator.ParseError
	var serviceErr *generator.ServiceError

	switch {
	case errors.Is(err, generator.ErrNotConfigured):
		return apierror.Configuration(err.Error())
	case errors.As(err, &parseErr):
		return apierror.Service("Invalid response from AI service: " + parseErr.Error())
	case errors.As(err, &serviceErr):
		return apierror.Service(serviceErr.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apierror.Service("AI service error: request timed out")
	default:
		return fmt.Errorf("generate: %w", err)
	}
}
