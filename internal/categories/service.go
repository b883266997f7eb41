package categories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/codes"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/models"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
)

const (
	codeConstraint = "ux_categories_org_code"
	codeAttempts   = 3
)

type settingsReader interface {
	FindSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type retryRecorder interface {
	CodeRetry(scope string)
}

type Service interface {
	List(ctx context.Context, orgID uuid.UUID) ([]CategoryDTO, error)
	NextCode(ctx context.Context, orgID uuid.UUID) (*NextCodeDTO, error)
	Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (*CategoryDTO, error)
	Update(ctx context.Context, orgID, id uuid.UUID, input UpdateInput) (*CategoryDTO, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

type service struct {
	repo     *Repository
	settings settingsReader
	tx       txRunner
	metrics  retryRecorder
}

func NewService(repo *Repository, settings settingsReader, tx txRunner, metrics retryRecorder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, settings: settings, tx: tx, metrics: metrics}, nil
}

func (s *service) List(ctx context.Context, orgID uuid.UUID) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) NextCode(ctx context.Context, orgID uuid.UUID) (*NextCodeDTO, error) {
	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	code, err := nextCode(ctx, s.repo, orgID, settings)
	if err != nil {
		return nil, err
	}
	return &NextCodeDTO{Code: code}, nil
}

func (s *service) loadSettings(ctx context.Context, orgID uuid.UUID) (*models.Settings, error) {
	settings, err := s.settings.FindSettings(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return settings, nil
}

func nextCode(ctx context.Context, repo *Repository, orgID uuid.UUID, settings *models.Settings) (string, error) {
	existing, err := repo.Codes(ctx, orgID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category codes")
	}
	return codes.Next(existing, settings.CategoryCodeWidth, orgs.Prefix(settings)), nil
}

func (s *service) Create(ctx context.Context, orgID uuid.UUID, input CreateInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	explicit := strings.TrimSpace(input.Code)
	settings, err := s.loadSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}

	attempts := codeAttempts
	if explicit != "" {
		attempts = 1
	}

	var row models.Category
	err = db.RetryOnUniqueViolation(attempts, codeConstraint, func(attempt int) error {
		if attempt > 1 && s.metrics != nil {
			s.metrics.CodeRetry("category")
		}
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			code := explicit
			if code == "" {
				next, err := nextCode(ctx, repo, orgID, settings)
				if err != nil {
					return err
				}
				code = next
			}
			row = models.Category{OrgID: orgID, Code: code, Name: name, Notes: input.Notes}
			return repo.Create(ctx, &row)
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err, codeConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category code already exists")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	dto := toDTO(&row)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, orgID, id uuid.UUID, input UpdateInput) (*CategoryDTO, error) {
	var row *models.Category
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		row, err = repo.FindByID(ctx, orgID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
			}
			row.Name = name
		}
		if input.Notes != nil {
			row.Notes = input.Notes
		}
		oldCode := row.Code
		if input.Code != nil {
			if code := strings.TrimSpace(*input.Code); code != "" {
				row.Code = code
			}
		}

		if err := repo.Update(ctx, row); err != nil {
			if db.IsUniqueViolation(err, codeConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "category code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
		}
		if row.Code != oldCode {
			if err := repo.RenameProductCategory(ctx, orgID, oldCode, row.Code); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move products to new category code")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(row)
	return &dto, nil
}

// Delete removes an empty category. Categories that still hold products
// cannot be deleted.
func (s *service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, orgID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		n, err := repo.CountProducts(ctx, orgID, row.Code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count products")
		}
		if n > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "category still has products").
				WithDetails(map[string]any{"products": n})
		}
		if _, err := repo.Delete(ctx, orgID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
		}
		return nil
	})
}
