package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/pkg/db/models"
	"github.com/iliria/erp-backend/pkg/enums"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/outbox"
	"github.com/iliria/erp-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes tenant bootstrap, membership resolution and settings.
type Service interface {
	Bootstrap(ctx context.Context, userID uuid.UUID, input BootstrapInput) (*CurrentOrgDTO, error)
	ResolveMembership(ctx context.Context, userID uuid.UUID) (*Membership, error)
	Current(ctx context.Context, userID uuid.UUID) (*CurrentOrgDTO, error)
	GetSettings(ctx context.Context, orgID uuid.UUID) (*SettingsDTO, error)
	UpdateSettings(ctx context.Context, m Membership, input UpdateSettingsInput) (*SettingsDTO, error)
}

type service struct {
	repo    *Repository
	tx      txRunner
	emitter outbox.Emitter
}

func NewService(repo *Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("org repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, emitter: emitter}, nil
}

func (s *service) Bootstrap(ctx context.Context, userID uuid.UUID, input BootstrapInput) (*CurrentOrgDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org name is required")
	}

	var (
		org      models.Org
		member   models.OrgMember
		settings models.Settings
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindActiveMembership(ctx, userID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "user already belongs to an org")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
		}

		org = models.Org{Name: name}
		if err := repo.CreateOrg(ctx, &org); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create org")
		}
		member = models.OrgMember{OrgID: org.ID, UserID: userID, Role: enums.MemberRoleOwner}
		if err := repo.CreateMember(ctx, &member); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
		}
		settings = models.NewDefaultSettings(org.ID)
		if err := repo.CreateSettings(ctx, &settings); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create settings")
		}

		return s.emitter.Emit(ctx, tx, outbox.Event{
			Type:          enums.EventOrgCreated,
			AggregateType: enums.AggregateOrg,
			AggregateID:   org.ID,
			Actor:         &outbox.Actor{UserID: userID, OrgID: &org.ID, Role: string(enums.MemberRoleOwner)},
			Data:          payloads.OrgCreatedEvent{OrgID: org.ID, Name: org.Name, OwnerUserID: userID},
		})
	})
	if err != nil {
		return nil, err
	}

	return &CurrentOrgDTO{
		Org:        orgToDTO(&org),
		Membership: memberToDTO(&member),
		Settings:   SettingsToDTO(&settings),
	}, nil
}

func (s *service) ResolveMembership(ctx context.Context, userID uuid.UUID) (*Membership, error) {
	member, err := s.repo.FindActiveMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user has no org")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	return &Membership{OrgID: member.OrgID, UserID: member.UserID, Role: member.Role}, nil
}

func (s *service) Current(ctx context.Context, userID uuid.UUID) (*CurrentOrgDTO, error) {
	member, err := s.repo.FindActiveMembership(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no org")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	org, err := s.repo.FindOrg(ctx, member.OrgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load org")
	}
	settings, err := s.repo.FindSettings(ctx, member.OrgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return &CurrentOrgDTO{
		Org:        orgToDTO(org),
		Membership: memberToDTO(member),
		Settings:   SettingsToDTO(settings),
	}, nil
}

func (s *service) GetSettings(ctx context.Context, orgID uuid.UUID) (*SettingsDTO, error) {
	settings, err := s.repo.FindSettings(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	dto := SettingsToDTO(settings)
	return &dto, nil
}

func (s *service) UpdateSettings(ctx context.Context, m Membership, input UpdateSettingsInput) (*SettingsDTO, error) {
	if !m.Role.CanManage() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only owners and admins can change settings")
	}
	if input.DefaultVATPercent.IsSet() {
		vat := input.DefaultVATPercent.Decimal()
		if vat.IsNegative() || vat.GreaterThan(hundred) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "default_vat_percent must be between 0 and 100")
		}
	}

	settings, err := s.repo.FindSettings(ctx, m.OrgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	input.apply(settings)
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	dto := SettingsToDTO(settings)
	return &dto, nil
}
