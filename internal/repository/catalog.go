package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

const (
	productsTable = "products"
	variantsTable = "product_variants"
)

var variantColumns = []string{
	"id", "product_id", "document_id", "section", "locale", "version_number", "position",
	"headlines", "advertising_copy", "key_feature_bullets", "legal_references",
}

// ReplaceStats summarizes one ReplaceVariants call.
type ReplaceStats struct {
	Deleted         int
	Inserted        int
	ProductsCreated int
}

type CatalogRepository interface {
	// ReplaceVariants deletes every variant owned by docID and inserts the given
	// ones, creating products by exact name as needed. ProductID on the inputs is
	// ignored and resolved from ProductName.
	ReplaceVariants(ctx context.Context, docID uuid.UUID, variants []entity.ProductVariant) (ReplaceStats, error)
	ListProducts(ctx context.Context) ([]entity.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*entity.ProductWithVariants, error)
	ListVariantsByDocument(ctx context.Context, docID uuid.UUID) ([]entity.ProductVariant, error)
}

type catalogRepo struct {
	db  *DB
	log *slog.Logger
}

func NewCatalogRepository(db *DB, log *slog.Logger) CatalogRepository {
	if log == nil {
		log = slog.Default()
	}
	return &catalogRepo{db: db, log: log}
}

func (r *catalogRepo) ReplaceVariants(ctx context.Context, docID uuid.UUID, variants []entity.ProductVariant) (ReplaceStats, error) {
	var stats ReplaceStats
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		sqlText, args := r.db.builder().Delete(variantsTable).Where(entsql.EQ("document_id", docID)).Query()
		n, err := exec(ctx, tx, sqlText, args)
		if err != nil {
			return fmt.Errorf("delete variants: %w", err)
		}
		stats.Deleted = int(n)

		ids := make(map[string]uuid.UUID)
		for _, v := range variants {
			pid, ok := ids[v.ProductName]
			if !ok {
				var created bool
				pid, created, err = r.findOrCreateProduct(ctx, tx, v.ProductName)
				if err != nil {
					return err
				}
				if created {
					stats.ProductsCreated++
				}
				ids[v.ProductName] = pid
			}

			sqlText, args := r.db.builder().Insert(variantsTable).
				Columns(variantColumns...).
				Values(v.ID, pid, docID, v.Section, v.Locale, v.VersionNumber, v.Position,
					encodeStrings(v.Headlines), v.AdvertisingCopy, encodeStrings(v.KeyFeatureBullets), encodeStrings(v.LegalReferences)).
				Query()
			if _, err := exec(ctx, tx, sqlText, args); err != nil {
				return fmt.Errorf("insert variant %s/%s: %w", v.Section, v.ProductName, err)
			}
			stats.Inserted++
		}
		return nil
	})
	if err != nil {
		r.log.Error("variant replacement failed", "document_id", docID, "error", err)
		return ReplaceStats{}, wrapDB("replace variants", err)
	}
	r.log.Info("variants replaced",
		"document_id", docID,
		"deleted", stats.Deleted,
		"inserted", stats.Inserted,
		"products_created", stats.ProductsCreated,
	)
	return stats, nil
}

func (r *catalogRepo) findOrCreateProduct(ctx context.Context, tx dialect.Tx, name string) (uuid.UUID, bool, error) {
	sqlText, args := r.db.builder().Insert(productsTable).
		Columns("id", "name", "created_at").
		Values(uuid.New(), name, time.Now().UTC()).
		OnConflict(entsql.ConflictColumns("name"), entsql.DoNothing()).
		Query()
	n, err := exec(ctx, tx, sqlText, args)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert product %q: %w", name, err)
	}

	sqlText, args = r.db.builder().Select("id").
		From(entsql.Table(productsTable)).
		Where(entsql.EQ("name", name)).
		Query()
	var id uuid.UUID
	found := false
	err = query(ctx, tx, sqlText, args, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&id)
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("select product %q: %w", name, err)
	}
	if !found {
		return uuid.Nil, false, fmt.Errorf("product %q vanished after upsert", name)
	}
	return id, n > 0, nil
}

func (r *catalogRepo) ListProducts(ctx context.Context) ([]entity.Product, error) {
	sqlText, args := r.db.builder().Select("id", "name", "created_at").
		From(entsql.Table(productsTable)).
		OrderBy("name").
		Query()

	var out []entity.Product
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		var p entity.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *catalogRepo) GetProduct(ctx context.Context, id uuid.UUID) (*entity.ProductWithVariants, error) {
	sqlText, args := r.db.builder().Select("id", "name", "created_at").
		From(entsql.Table(productsTable)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()

	var p *entity.ProductWithVariants
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		p = &entity.ProductWithVariants{}
		return rows.Scan(&p.ID, &p.Name, &p.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get product: %v", common.ErrDatabase, err)
	}
	if p == nil {
		return nil, fmt.Errorf("product %s: %w", id, common.ErrNotFound)
	}

	variants, err := r.listVariants(ctx, func(v *entsql.SelectTable) *entsql.Predicate {
		return entsql.EQ(v.C("product_id"), id)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: product variants: %v", common.ErrDatabase, err)
	}
	p.Variants = variants
	return p, nil
}

func (r *catalogRepo) ListVariantsByDocument(ctx context.Context, docID uuid.UUID) ([]entity.ProductVariant, error) {
	variants, err := r.listVariants(ctx, func(v *entsql.SelectTable) *entsql.Predicate {
		return entsql.EQ(v.C("document_id"), docID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: document variants: %v", common.ErrDatabase, err)
	}
	return variants, nil
}

// listVariants joins variants to their product names, filtered by where.
func (r *catalogRepo) listVariants(ctx context.Context, where func(v *entsql.SelectTable) *entsql.Predicate) ([]entity.ProductVariant, error) {
	b := r.db.builder()
	v := b.Table(variantsTable)
	p := b.Table(productsTable)

	cols := make([]string, 0, len(variantColumns)+1)
	for _, c := range variantColumns {
		cols = append(cols, v.C(c))
	}
	cols = append(cols, p.C("name"))

	sqlText, args := b.Select(cols...).
		From(v).
		Join(p).On(v.C("product_id"), p.C("id")).
		Where(where(v)).
		OrderBy(v.C("document_id"), v.C("section"), v.C("position")).
		Query()

	out := []entity.ProductVariant{}
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		var (
			pv                            entity.ProductVariant
			headlines, bullets, legalRefs string
		)
		if err := rows.Scan(&pv.ID, &pv.ProductID, &pv.DocumentID, &pv.Section, &pv.Locale, &pv.VersionNumber, &pv.Position,
			&headlines, &pv.AdvertisingCopy, &bullets, &legalRefs, &pv.ProductName); err != nil {
			return err
		}
		pv.Headlines = decodeStrings(headlines)
		pv.KeyFeatureBullets = decodeStrings(bullets)
		pv.LegalReferences = decodeStrings(legalRefs)
		out = append(out, pv)
		return nil
	})
	return out, err
}
