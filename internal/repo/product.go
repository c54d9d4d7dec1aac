package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/ean_catalog/internal/models"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

func productFilter(q string, allFields bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q == "" {
			return db
		}
		p := containsPattern(q)
		if !allFields {
			return db.Where(`LOWER(sku) LIKE ? ESCAPE '\'`, p)
		}
		return db.Where(
			`LOWER(sku) LIKE ? ESCAPE '\' OR LOWER(descricao) LIKE ? ESCAPE '\' OR LOWER(codigo_barras) LIKE ? ESCAPE '\'`,
			p, p, p,
		)
	}
}

// SearchProducts matches q as a case-insensitive substring of sku, or of all
// three columns when allFields is set. Results are ordered by sku.
func (r *GormRepo) SearchProducts(ctx context.Context, q string, allFields bool, offset, limit int) (int64, []models.Product, error) {
	var total int64
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(productFilter(q, allFields)).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Product, 0, limit)
	if err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Scopes(productFilter(q, allFields)).
		Order("sku ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return 0, nil, err
	}

	return total, items, nil
}

func (r *GormRepo) GetProduct(ctx context.Context, sku string) (*models.Product, error) {
	var prod models.Product
	if err := r.DB.WithContext(ctx).Where("sku = ?", sku).First(&prod).Error; err != nil {
		return nil, err
	}
	return &prod, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, prod *models.Product) error {
	if err := r.DB.WithContext(ctx).Create(prod).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *GormRepo) UpdateProduct(ctx context.Context, prod *models.Product) error {
	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("sku = ?", prod.SKU).
		Updates(map[string]any{
			"descricao":     prod.Descricao,
			"codigo_barras": prod.CodigoBarras,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormRepo) DeleteProduct(ctx context.Context, sku string) error {
	res := r.DB.WithContext(ctx).Where("sku = ?", sku).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertProducts inserts the batch in one statement, overwriting descricao and
// codigo_barras of rows whose sku already exists.
func (r *GormRepo) UpsertProducts(ctx context.Context, items []models.Product) error {
	if len(items) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"descricao", "codigo_barras"}),
		}).
		Create(&items).Error
}
