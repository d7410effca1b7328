package warehouse

// DDL for the staging table and the star schema, executed idempotently at
// the start of every run. Dimension surrogate keys are assigned in-process,
// so the dimension tables carry plain INTEGER primary keys; only the
// staging and fact tables keep a SERIAL row id.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS raw_books (
		id SERIAL PRIMARY KEY,
		upc VARCHAR(50) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		price NUMERIC(10, 2) NOT NULL,
		price_excl_tax NUMERIC(10, 2) NOT NULL,
		price_incl_tax NUMERIC(10, 2) NOT NULL,
		tax NUMERIC(10, 2) NOT NULL,
		rating INTEGER,
		availability VARCHAR(50) NOT NULL,
		available_quantity INTEGER NOT NULL DEFAULT 0,
		category VARCHAR(100) NOT NULL,
		product_type VARCHAR(50) NOT NULL,
		no_of_reviews INTEGER NOT NULL DEFAULT 0,
		book_url TEXT NOT NULL DEFAULT '',
		book_thumbnail_url TEXT NOT NULL DEFAULT '',
		product_description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS category_info (
		id INTEGER PRIMARY KEY,
		category_name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS rating_info (
		id INTEGER PRIMARY KEY,
		rating_value INTEGER NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS availability_info (
		id INTEGER PRIMARY KEY,
		availability_status VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS product_type (
		id INTEGER PRIMARY KEY,
		product_type_name VARCHAR(50) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS books_details (
		id INTEGER PRIMARY KEY,
		upc VARCHAR(50) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		product_description TEXT NOT NULL DEFAULT '',
		book_url TEXT NOT NULL DEFAULT '',
		book_thumbnail_url TEXT NOT NULL DEFAULT '',
		no_of_reviews INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS books_fact (
		id SERIAL PRIMARY KEY,
		books_details_id INTEGER NOT NULL REFERENCES books_details(id),
		price NUMERIC(10, 2) NOT NULL,
		price_excl_tax NUMERIC(10, 2) NOT NULL,
		price_incl_tax NUMERIC(10, 2) NOT NULL,
		tax NUMERIC(10, 2) NOT NULL,
		available_quantity INTEGER NOT NULL DEFAULT 0,
		category_id INTEGER NOT NULL REFERENCES category_info(id),
		rating_id INTEGER REFERENCES rating_info(id),
		availability_id INTEGER NOT NULL REFERENCES availability_info(id),
		product_type_id INTEGER NOT NULL REFERENCES product_type(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}
