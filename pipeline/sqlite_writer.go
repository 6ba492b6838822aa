package pipeline

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-shops/models"
	_ "modernc.org/sqlite"
)

const createItemsTableSQL = `
CREATE TABLE IF NOT EXISTS items (
	"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
	"name" TEXT NOT NULL,
	"price" REAL NOT NULL,
	"description" TEXT,
	"category" TEXT,
	"rating" REAL,
	"brand" TEXT,
	"source" TEXT,
	"sub_category" TEXT,
	"url" TEXT,
	"created_at" DATETIME DEFAULT CURRENT_TIMESTAMP
);`

const insertItemSQL = `
INSERT INTO items (name, price, description, category, rating, brand, source, sub_category, url)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

// SQLiteWriter appends each batch to an items table inside one transaction.
type SQLiteWriter struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database at filename.
func NewSQLiteWriter(filename string) (*SQLiteWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(createItemsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create items table: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// Write inserts items in a single transaction.
func (sw *SQLiteWriter) Write(items []*models.Item) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(insertItemSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		var rating any
		if item.Rating != nil {
			rating = *item.Rating
		}
		_, err := stmt.Exec(
			item.Name, item.Price, nullable(item.Description), item.Category,
			rating, nullable(item.Brand), item.Source, item.SubCategory, item.URL,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert item %s: %w", item.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit items: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures at least one item was stored.
func (sw *SQLiteWriter) Validate() error {
	count, err := sw.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("sqlite items table is empty")
	}
	return nil
}

// Count returns the number of stored items.
func (sw *SQLiteWriter) Count() (int, error) {
	var count int
	if err := sw.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
