package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var (
	ErrPackageNotFound  = errors.New("package not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

const packageSelect = `
	SELECT p.id, p.title, p.description, p.price, p.duration_days, p.max_people, p.category_id,
	       c.name, p.image_url, p.highlights, p.inclusions, p.exclusions, p.itinerary,
	       p.is_featured, p.is_active, p.created_at, p.updated_at
	FROM packages p
	LEFT JOIN categories c ON c.id = p.category_id`

func scanPackage(row interface{ Scan(dest ...any) error }) (Package, error) {
	var p Package
	var category, imageURL sql.NullString
	var highlights, inclusions, exclusions, itinerary []byte
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.DurationDays, &p.MaxPeople, &p.CategoryID,
		&category, &imageURL, &highlights, &inclusions, &exclusions, &itinerary,
		&p.IsFeatured, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Package{}, err
	}

	if category.Valid {
		p.Category = &category.String
	}
	if imageURL.Valid {
		p.ImageURL = &imageURL.String
	}
	for _, field := range []struct {
		raw []byte
		dst *[]string
	}{{highlights, &p.Highlights}, {inclusions, &p.Inclusions}, {exclusions, &p.Exclusions}} {
		*field.dst = []string{}
		if len(field.raw) > 0 {
			if err := json.Unmarshal(field.raw, field.dst); err != nil {
				return Package{}, fmt.Errorf("decode package list column: %w", err)
			}
		}
	}
	p.Itinerary = json.RawMessage("[]")
	if len(itinerary) > 0 {
		p.Itinerary = json.RawMessage(itinerary)
	}

	return p, nil
}

func (r *Repository) queryPackages(ctx context.Context, query string, args ...any) ([]Package, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	packages := make([]Package, 0)
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}

	return packages, nil
}

// ListActive returns one page of active packages, newest first, together with
// the number of active packages overall.
func (r *Repository) ListActive(ctx context.Context, limit, offset int) (PackagePage, error) {
	packages, err := r.queryPackages(ctx, packageSelect+`
		WHERE p.is_active = true
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return PackagePage{}, err
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages WHERE is_active = true`).Scan(&total); err != nil {
		return PackagePage{}, fmt.Errorf("count packages: %w", err)
	}

	return PackagePage{Packages: packages, Total: total}, nil
}

func (r *Repository) ListFeatured(ctx context.Context, limit int) ([]Package, error) {
	return r.queryPackages(ctx, packageSelect+`
		WHERE p.is_active = true AND p.is_featured = true
		ORDER BY p.created_at DESC
		LIMIT $1
	`, limit)
}

func (r *Repository) ListByCategory(ctx context.Context, categoryID uuid.UUID, limit, offset int) ([]Package, error) {
	return r.queryPackages(ctx, packageSelect+`
		WHERE p.category_id = $1 AND p.is_active = true
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, categoryID, limit, offset)
}

func (r *Repository) GetActive(ctx context.Context, id uuid.UUID) (Package, error) {
	p, err := scanPackage(r.db.QueryRowContext(ctx, packageSelect+`
		WHERE p.id = $1 AND p.is_active = true
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Package{}, ErrPackageNotFound
		}
		return Package{}, fmt.Errorf("query package: %w", err)
	}

	return p, nil
}

func (r *Repository) Create(ctx context.Context, input PackageInput) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid v7: %w", err)
	}

	args, err := packageArgs(input)
	if err != nil {
		return uuid.Nil, err
	}

	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO packages (id, title, description, price, duration_days, max_people, category_id, image_url,
		                      highlights, inclusions, exclusions, itinerary, is_featured, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, true, $14, $14)
	`, append(append([]any{id}, args...), now)...)
	if err != nil {
		return uuid.Nil, mapWriteError("insert package", err)
	}

	return id, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, input PackageInput) error {
	args, err := packageArgs(input)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE packages
		SET title = $2, description = $3, price = $4, duration_days = $5, max_people = $6, category_id = $7,
		    image_url = $8, highlights = $9, inclusions = $10, exclusions = $11, itinerary = $12,
		    is_featured = $13, updated_at = $14
		WHERE id = $1
	`, append(append([]any{id}, args...), r.now().UTC())...)
	if err != nil {
		return mapWriteError("update package", err)
	}

	return expectOneRow(res, ErrPackageNotFound)
}

// Deactivate hides a package from the catalog. Existing bookings keep
// pointing at it.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE packages SET is_active = false, updated_at = $2 WHERE id = $1
	`, id, r.now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate package: %w", err)
	}

	return expectOneRow(res, ErrPackageNotFound)
}

func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.icon, COUNT(p.id)
		FROM categories c
		LEFT JOIN packages p ON p.category_id = c.id AND p.is_active = true
		WHERE c.is_active = true
		GROUP BY c.id, c.name, c.description, c.icon
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		var description, icon sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &description, &icon, &c.PackageCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if description.Valid {
			c.Description = &description.String
		}
		if icon.Valid {
			c.Icon = &icon.String
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

func (r *Repository) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Category{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := r.now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, icon, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, $5, $5)
	`, id, input.Name, input.Description, input.Icon, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Category{}, ErrCategoryExists
		}
		return Category{}, fmt.Errorf("insert category: %w", err)
	}

	return Category{ID: id, Name: input.Name, Description: input.Description, Icon: input.Icon}, nil
}

func packageArgs(input PackageInput) ([]any, error) {
	categoryID, err := uuid.Parse(input.CategoryID)
	if err != nil {
		return nil, ErrCategoryNotFound
	}

	lists := make([][]byte, 0, 3)
	for _, list := range [][]string{input.Highlights, input.Inclusions, input.Exclusions} {
		if list == nil {
			list = []string{}
		}
		encoded, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("encode package list: %w", err)
		}
		lists = append(lists, encoded)
	}

	itinerary := []byte(input.Itinerary)
	if len(itinerary) == 0 || string(itinerary) == "null" {
		itinerary = []byte("[]")
	}

	featured := input.IsFeatured != nil && *input.IsFeatured

	return []any{
		input.Title, input.Description, input.Price, input.DurationDays, input.MaxPeople, categoryID,
		input.ImageURL, lists[0], lists[1], lists[2], itinerary, featured,
	}, nil
}

func mapWriteError(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrCategoryNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

func expectOneRow(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
