package store

import (
	"context"
)

// Additive is a catalog ingredient. Weight and Dosage are legacy columns
// kept for older databases; they are written as empty strings.
type Additive struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Weight       string `db:"weight" json:"weight,omitempty"`
	Dosage       string `db:"dosage" json:"dosage,omitempty"`
	CategoryID   int64  `db:"category_id" json:"category_id,omitempty"`
	CategoryName string `db:"category_name" json:"category_name,omitempty"`
}

// Product is a catalog product. Price and Stock are stored as entered.
type Product struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	CategoryID   int64  `db:"category_id" json:"category_id,omitempty"`
	CategoryName string `db:"category_name" json:"category_name,omitempty"`
	Price        string `db:"price" json:"price"`
	Stock        string `db:"stock" json:"stock"`
}

// ProductAdditive is a recipe line: DosagePer100 of an additive per 100
// units of raw material.
type ProductAdditive struct {
	ID           int64  `db:"id" json:"id"`
	ProductID    int64  `db:"product_id" json:"product_id"`
	AdditiveID   int64  `db:"additive_id" json:"additive_id"`
	AdditiveName string `db:"additive_name" json:"additive_name"`
	CategoryID   int64  `db:"category_id" json:"category_id,omitempty"`
	CategoryName string `db:"category_name" json:"category_name"`
	DosagePer100 string `db:"dosage_per_100" json:"dosage_per_100"`
}

// Packaging is a catalog packaging item.
type Packaging struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Quantity     string `db:"quantity" json:"quantity"`
	Date         string `db:"date" json:"date"`
	CategoryID   int64  `db:"packaging_category_id" json:"category_id,omitempty"`
	CategoryName string `db:"category_name" json:"category_name,omitempty"`
}

const additiveSelect = `
	SELECT a.id, a.name, COALESCE(a.weight, '') AS weight, COALESCE(a.dosage, '') AS dosage,
	       COALESCE(a.category_id, 0) AS category_id, COALESCE(c.name, '') AS category_name
	FROM additives a
	LEFT JOIN categories c ON a.category_id = c.id`

// ListAdditives returns all additives ordered by id.
func (s *Store) ListAdditives(ctx context.Context) ([]Additive, error) {
	out := []Additive{}
	if err := s.db.SelectContext(ctx, &out, additiveSelect+" ORDER BY a.id"); err != nil {
		return nil, classify(err, "list additives")
	}
	return out, nil
}

// GetAdditive returns one additive or ErrNotFound.
func (s *Store) GetAdditive(ctx context.Context, id int64) (Additive, error) {
	var a Additive
	if err := s.db.GetContext(ctx, &a, additiveSelect+" WHERE a.id = ?", id); err != nil {
		return Additive{}, classify(err, "get additive")
	}
	return a, nil
}

// AddAdditive inserts an additive and returns its id.
func (s *Store) AddAdditive(ctx context.Context, name string, categoryID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO additives (name, weight, dosage, category_id) VALUES (?, '', '', ?)",
		name, nullID(categoryID))
	if err != nil {
		return 0, classify(err, "add additive")
	}
	return insertedID(res, "add additive")
}

// UpdateAdditive changes name and category of an additive.
func (s *Store) UpdateAdditive(ctx context.Context, id int64, name string, categoryID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE additives SET name = ?, category_id = ? WHERE id = ?", name, nullID(categoryID), id)
	if err != nil {
		return classify(err, "update additive")
	}
	return expectOneRow(res, "update additive")
}

// DeleteAdditive deletes an additive. One still used by a recipe or the
// register yields ErrConstraint.
func (s *Store) DeleteAdditive(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM additives WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete additive")
	}
	return expectOneRow(res, "delete additive")
}

const productSelect = `
	SELECT p.id, p.name, COALESCE(p.category_id, 0) AS category_id, COALESCE(c.name, '') AS category_name,
	       COALESCE(p.price, '') AS price, COALESCE(p.stock, '') AS stock
	FROM products p
	LEFT JOIN product_categories c ON p.category_id = c.id`

// ListProducts returns all products ordered by id.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	out := []Product{}
	if err := s.db.SelectContext(ctx, &out, productSelect+" ORDER BY p.id"); err != nil {
		return nil, classify(err, "list products")
	}
	return out, nil
}

// GetProduct returns one product with its category name, or ErrNotFound.
func (s *Store) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	if err := s.db.GetContext(ctx, &p, productSelect+" WHERE p.id = ?", id); err != nil {
		return Product{}, classify(err, "get product")
	}
	return p, nil
}

// AddProduct inserts a product and returns its id.
func (s *Store) AddProduct(ctx context.Context, name string, categoryID int64, price, stock string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO products (name, category_id, price, stock) VALUES (?, ?, ?, ?)",
		name, nullID(categoryID), price, stock)
	if err != nil {
		return 0, classify(err, "add product")
	}
	return insertedID(res, "add product")
}

// UpdateProduct overwrites all editable product columns.
func (s *Store) UpdateProduct(ctx context.Context, p Product) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE products
		SET name = :name, category_id = NULLIF(:category_id, 0), price = :price, stock = :stock
		WHERE id = :id`, p)
	if err != nil {
		return classify(err, "update product")
	}
	return expectOneRow(res, "update product")
}

// DeleteProduct deletes a product. One still referenced by recipes or
// production records yields ErrConstraint.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete product")
	}
	return expectOneRow(res, "delete product")
}

// ListProductAdditives returns the recipe of a product with additive and
// additive category names, in insertion order.
func (s *Store) ListProductAdditives(ctx context.Context, productID int64) ([]ProductAdditive, error) {
	out := []ProductAdditive{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT pa.id, pa.product_id, pa.additive_id, a.name AS additive_name,
		       COALESCE(a.category_id, 0) AS category_id, COALESCE(c.name, '') AS category_name,
		       COALESCE(pa.dosage_per_100, '') AS dosage_per_100
		FROM product_additives pa
		JOIN additives a ON pa.additive_id = a.id
		LEFT JOIN categories c ON a.category_id = c.id
		WHERE pa.product_id = ?
		ORDER BY pa.id`, productID)
	if err != nil {
		return nil, classify(err, "list product additives")
	}
	return out, nil
}

// AddProductAdditive appends a recipe line and returns its id.
func (s *Store) AddProductAdditive(ctx context.Context, productID, additiveID int64, dosagePer100 string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO product_additives (product_id, additive_id, dosage_per_100) VALUES (?, ?, ?)",
		productID, additiveID, dosagePer100)
	if err != nil {
		return 0, classify(err, "add product additive")
	}
	return insertedID(res, "add product additive")
}

// UpdateProductAdditive changes only the dosage of a recipe line.
func (s *Store) UpdateProductAdditive(ctx context.Context, id int64, dosagePer100 string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE product_additives SET dosage_per_100 = ? WHERE id = ?", dosagePer100, id)
	if err != nil {
		return classify(err, "update product additive")
	}
	return expectOneRow(res, "update product additive")
}

// UpdateProductAdditiveFull changes the additive and the dosage of a recipe line.
func (s *Store) UpdateProductAdditiveFull(ctx context.Context, id, additiveID int64, dosagePer100 string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE product_additives SET additive_id = ?, dosage_per_100 = ? WHERE id = ?",
		additiveID, dosagePer100, id)
	if err != nil {
		return classify(err, "update product additive")
	}
	return expectOneRow(res, "update product additive")
}

// DeleteProductAdditive removes a recipe line.
func (s *Store) DeleteProductAdditive(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM product_additives WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete product additive")
	}
	return expectOneRow(res, "delete product additive")
}

const packagingSelect = `
	SELECT p.id, p.name, COALESCE(p.quantity, '') AS quantity, COALESCE(p.date, '') AS date,
	       COALESCE(p.packaging_category_id, 0) AS packaging_category_id, COALESCE(c.name, '') AS category_name
	FROM packaging p
	LEFT JOIN packaging_categories c ON p.packaging_category_id = c.id`

// ListPackaging returns all packaging items ordered by id.
func (s *Store) ListPackaging(ctx context.Context) ([]Packaging, error) {
	out := []Packaging{}
	if err := s.db.SelectContext(ctx, &out, packagingSelect+" ORDER BY p.id"); err != nil {
		return nil, classify(err, "list packaging")
	}
	return out, nil
}

// AddPackaging inserts a packaging item and returns its id.
func (s *Store) AddPackaging(ctx context.Context, name, quantity, date string, categoryID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO packaging (name, quantity, date, packaging_category_id) VALUES (?, ?, ?, ?)",
		name, quantity, date, nullID(categoryID))
	if err != nil {
		return 0, classify(err, "add packaging")
	}
	return insertedID(res, "add packaging")
}

// UpdatePackaging overwrites all editable packaging columns.
func (s *Store) UpdatePackaging(ctx context.Context, p Packaging) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE packaging
		SET name = :name, quantity = :quantity, date = :date,
		    packaging_category_id = NULLIF(:packaging_category_id, 0)
		WHERE id = :id`, p)
	if err != nil {
		return classify(err, "update packaging")
	}
	return expectOneRow(res, "update packaging")
}

// DeletePackaging deletes a packaging item.
func (s *Store) DeletePackaging(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM packaging WHERE id = ?", id)
	if err != nil {
		return classify(err, "delete packaging")
	}
	return expectOneRow(res, "delete packaging")
}
