package service

import (
	"context"
	"errors"
	"strconv"

	"microbonds/internal/factory/models"
	"microbonds/pkg/domain"
	dErrors "microbonds/pkg/domain-errors"
	audit "microbonds/pkg/platform/audit"
	"microbonds/pkg/platform/sentinel"
)

// AddVersion stores a new deployable payload and returns its index.
func (s *Service) AddVersion(ctx context.Context, payload []byte) (uint64, error) {
	if _, err := s.requireOwner(ctx); err != nil {
		return 0, err
	}
	if len(payload) == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidPayload, "token code must not be empty")
	}

	var index uint64
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		index, err = store.AppendVersion(ctx, payload)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store token version")
		}
		return s.emit(ctx, audit.EventAddTokenVersion, s.cfg.AccountID.String(), map[string]string{
			"token_version": strconv.FormatUint(index, 10),
			"size":          strconv.Itoa(len(payload)),
		})
	})
	if err != nil {
		return 0, err
	}
	s.metrics.IncrementVersionAdded()
	s.logger.InfoContext(ctx, "token version added",
		"token_version", index,
		"size", len(payload),
	)
	return index, nil
}

// ListVersions returns every stored version index in insertion order.
func (s *Service) ListVersions(ctx context.Context) ([]uint64, error) {
	versions, err := s.store.ListVersions(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list token versions")
	}
	return versions, nil
}

// Code returns the payload stored under index.
func (s *Service) Code(ctx context.Context, index uint64) ([]byte, error) {
	version, err := s.findVersion(ctx, s.store, index)
	if err != nil {
		return nil, err
	}
	return version.Payload, nil
}

// DeploymentCost is the storage price of deploying the payload at index.
func (s *Service) DeploymentCost(ctx context.Context, index uint64) (domain.Amount, error) {
	version, err := s.findVersion(ctx, s.store, index)
	if err != nil {
		return domain.Amount{}, err
	}
	return s.costOf(version), nil
}

func (s *Service) costOf(version *models.TokenVersion) domain.Amount {
	return s.cfg.StoragePricePerByte.MulUint64(uint64(len(version.Payload)))
}

func (s *Service) findVersion(ctx context.Context, store Store, index uint64) (*models.TokenVersion, error) {
	version, err := store.FindVersion(ctx, index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "token version does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token version")
	}
	return version, nil
}

// AddMunicipality registers a new municipality.
func (s *Service) AddMunicipality(ctx context.Context, municipalityID string, memo *string) error {
	if _, err := s.requireOwner(ctx); err != nil {
		return err
	}
	if err := domain.ValidateID("municipality_id", municipalityID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		if err := store.AddMunicipality(ctx, municipalityID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyExists, "municipality already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add municipality")
		}
		return s.emit(ctx, audit.EventAddMunicipality, municipalityID, audit.WithMemo(map[string]string{
			"municipality_id": municipalityID,
		}, memo))
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementRegistryEntry("municipality")
	s.logger.InfoContext(ctx, "municipality added", "municipality_id", municipalityID)
	return nil
}

// AddProject registers a project under an existing municipality.
func (s *Service) AddProject(ctx context.Context, municipalityID, projectID string, memo *string) error {
	if _, err := s.requireOwner(ctx); err != nil {
		return err
	}
	if err := domain.ValidateID("municipality_id", municipalityID); err != nil {
		return err
	}
	if err := domain.ValidateID("project_id", projectID); err != nil {
		return err
	}

	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		if err := s.requireMunicipality(ctx, store, municipalityID); err != nil {
			return err
		}
		if err := store.AddProject(ctx, municipalityID, projectID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyExists, "project already exists in municipality")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add project")
		}
		return s.emit(ctx, audit.EventAddProject, municipalityID, audit.WithMemo(map[string]string{
			"municipality_id": municipalityID,
			"project_id":      projectID,
		}, memo))
	})
	if err != nil {
		return err
	}
	s.metrics.IncrementRegistryEntry("project")
	s.logger.InfoContext(ctx, "project added",
		"municipality_id", municipalityID,
		"project_id", projectID,
	)
	return nil
}

func (s *Service) requireMunicipality(ctx context.Context, store Store, municipalityID string) error {
	ok, err := store.HasMunicipality(ctx, municipalityID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load municipality")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "municipality does not exist")
	}
	return nil
}

func (s *Service) requireProject(ctx context.Context, store Store, municipalityID, projectID string) error {
	ok, err := store.HasProject(ctx, municipalityID, projectID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load project")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "project does not exist")
	}
	return nil
}

// ListMunicipalities pages through municipalities in registration order.
func (s *Service) ListMunicipalities(ctx context.Context, page domain.Page) ([]string, error) {
	ids, err := s.store.ListMunicipalities(ctx, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list municipalities")
	}
	return ids, nil
}

// ListProjects pages through a municipality's projects. Unknown
// municipalities have no projects.
func (s *Service) ListProjects(ctx context.Context, municipalityID string, page domain.Page) ([]string, error) {
	ids, err := s.store.ListProjects(ctx, municipalityID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list projects")
	}
	return ids, nil
}

// ListTokens pages through the tokens deployed for a project.
func (s *Service) ListTokens(ctx context.Context, municipalityID, projectID string, page domain.Page) ([]models.TokenReference, error) {
	tokens, err := s.store.ListTokens(ctx, municipalityID, projectID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tokens")
	}
	return tokens, nil
}
