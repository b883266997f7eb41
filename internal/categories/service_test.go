package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/iliria/erp-backend/internal/orgs"
	"github.com/iliria/erp-backend/pkg/db"
	"github.com/iliria/erp-backend/pkg/db/dbtest"
	"github.com/iliria/erp-backend/pkg/db/models"
	pkgerrors "github.com/iliria/erp-backend/pkg/errors"
	"github.com/iliria/erp-backend/pkg/outbox"
)

type retryCounter struct{ n int }

func (r *retryCounter) CodeRetry(string) { r.n++ }

type fixture struct {
	svc     Service
	repo    *Repository
	orgRepo *orgs.Repository
	orgID   uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.OpenClient(t)
	orgRepo := orgs.NewRepository(client.DB())
	orgSvc, err := orgs.NewService(orgRepo, client, outbox.NewWriter(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)
	cur, err := orgSvc.Bootstrap(context.Background(), uuid.New(), orgs.BootstrapInput{Name: "Shop"})
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	svc, err := NewService(repo, orgRepo, client, &retryCounter{})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, orgRepo: orgRepo, orgID: cur.Org.ID}
}

func (f fixture) addProduct(t *testing.T, code, category string) {
	t.Helper()
	cat := category
	p := models.Product{
		OrgID:        f.orgID,
		Code:         code,
		CategoryCode: &cat,
		Name:         code,
		Price:        decimal.NewFromInt(1),
		Stock:        decimal.Zero,
		LowStock:     decimal.Zero,
		AvgCost:      decimal.Zero,
	}
	require.NoError(t, f.repo.db.Create(&p).Error)
}

func TestCreateGeneratesSequentialCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	next, err := f.svc.NextCode(ctx, f.orgID)
	require.NoError(t, err)
	assert.Equal(t, "001", next.Code)

	first, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Tiles"})
	require.NoError(t, err)
	assert.Equal(t, "001", first.Code)

	_, err = f.svc.Create(ctx, f.orgID, CreateInput{Code: "007", Name: "Paint"})
	require.NoError(t, err)

	third, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Tools"})
	require.NoError(t, err)
	assert.Equal(t, "008", third.Code)

	list, err := f.svc.List(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"001", "007", "008"}, []string{list[0].Code, list[1].Code, list[2].Code})
}

// racingTx commits a rival category under the code the service is about to
// insert, once, the way a concurrent request that won the race would.
type racingTx struct {
	client *db.Client
	rival  *models.Category
}

func newRacingTx(t *testing.T, client *db.Client) *racingTx {
	t.Helper()
	r := &racingTx{client: client}
	armed := true
	err := client.DB().Callback().Create().Before("gorm:create").Register("test:rival_category", func(tx *gorm.DB) {
		cat, ok := tx.Statement.Dest.(*models.Category)
		if !ok || !armed {
			return
		}
		armed = false
		r.rival = &models.Category{OrgID: cat.OrgID, Code: cat.Code, Name: "rival"}
		// taken inside the same transaction so the service insert hits the index
		_ = tx.Session(&gorm.Session{NewDB: true}).Create(&models.Category{OrgID: cat.OrgID, Code: cat.Code, Name: "rival"}).Error
	})
	require.NoError(t, err)
	return r
}

func (r *racingTx) WithTx(ctx context.Context, fn func(*gorm.DB) error) error {
	err := r.client.WithTx(ctx, fn)
	if r.rival != nil {
		rival := r.rival
		r.rival = nil
		if cerr := r.client.DB().WithContext(ctx).Create(rival).Error; cerr != nil {
			return cerr
		}
	}
	return err
}

func TestCreateRetriesWhenGeneratedCodeIsTaken(t *testing.T) {
	client := dbtest.OpenClient(t)
	orgRepo := orgs.NewRepository(client.DB())
	orgSvc, err := orgs.NewService(orgRepo, client, outbox.NewWriter(outbox.NewRepository(client.DB()), nil))
	require.NoError(t, err)
	cur, err := orgSvc.Bootstrap(context.Background(), uuid.New(), orgs.BootstrapInput{Name: "Shop"})
	require.NoError(t, err)

	retries := &retryCounter{}
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, orgRepo, newRacingTx(t, client), retries)
	require.NoError(t, err)

	out, err := svc.Create(context.Background(), cur.Org.ID, CreateInput{Name: "Tiles"})
	require.NoError(t, err)
	assert.Equal(t, "002", out.Code)
	assert.Equal(t, 1, retries.n)

	list, err := svc.List(context.Background(), cur.Org.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "001", list[0].Code)
	assert.Equal(t, "rival", list[0].Name)
}

func TestCreateHonoursPrefixSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	settings, err := f.orgRepo.FindSettings(ctx, f.orgID)
	require.NoError(t, err)
	settings.PrefixEnabled = true
	settings.PrefixText = "CAT"
	settings.CategoryCodeWidth = 2
	require.NoError(t, f.orgRepo.SaveSettings(ctx, settings))

	out, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Tiles"})
	require.NoError(t, err)
	assert.Equal(t, "CAT-01", out.Code)
}

func TestCreateRejectsDuplicateExplicitCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.orgID, CreateInput{Code: "010", Name: "A"})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.orgID, CreateInput{Code: "010", Name: "B"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Create(ctx, f.orgID, CreateInput{Name: " "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateRenamesProductCategoryCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Tiles"})
	require.NoError(t, err)
	f.addProduct(t, "001-0001", cat.Code)

	code, name := "050", "Floor tiles"
	out, err := f.svc.Update(ctx, f.orgID, cat.ID, UpdateInput{Code: &code, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "050", out.Code)
	assert.Equal(t, "Floor tiles", out.Name)

	moved, err := f.repo.CountProducts(ctx, f.orgID, "050")
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	_, err = f.svc.Update(ctx, f.orgID, uuid.New(), UpdateInput{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateConflictsOnTakenCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "A"})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "B"})
	require.NoError(t, err)

	taken := "001"
	_, err = f.svc.Update(ctx, f.orgID, b.ID, UpdateInput{Code: &taken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestDeleteBlockedWhileProductsExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Tiles"})
	require.NoError(t, err)
	f.addProduct(t, "001-0001", cat.Code)

	err = f.svc.Delete(ctx, f.orgID, cat.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	empty, err := f.svc.Create(ctx, f.orgID, CreateInput{Name: "Empty"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, f.orgID, empty.ID))

	err = f.svc.Delete(ctx, f.orgID, empty.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
