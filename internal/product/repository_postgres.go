package product

import (
	"database/sql"

	"github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

const (
	listProductsQuery = `
		SELECT product_uid, product_name, product_price
		FROM product
		ORDER BY product_name
	`
	getProductByUIDQuery = `
		SELECT product_uid, product_name, product_price
		FROM product
		WHERE product_uid = $1
	`
	getProductsByUIDsQuery = `
		SELECT product_uid, product_name, product_price
		FROM product
		WHERE product_uid = ANY($1::text[])
		ORDER BY array_position($1::text[], product_uid)
	`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List() []Product {
	rows, err := r.db.Query(listProductsQuery)
	if err != nil {
		return []Product{}
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *PostgresRepository) GetByUID(uid string) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(getProductByUIDQuery, uid))
	if err != nil {
		if err == sql.ErrNoRows {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *PostgresRepository) GetByUIDs(uids []string) ([]Product, error) {
	if len(uids) == 0 {
		return []Product{}, nil
	}
	rows, err := r.db.Query(getProductsByUIDsQuery, pq.Array(uids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, len(uids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(scanner rowScanner) (Product, error) {
	var p Product
	var name sql.NullString
	if err := scanner.Scan(&p.UID, &name, &p.Price); err != nil {
		return Product{}, err
	}
	if name.Valid {
		p.Name = name.String
	}
	return p, nil
}
