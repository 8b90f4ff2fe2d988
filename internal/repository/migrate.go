package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CurrentSchemaVersion is the newest cache layout this binary understands.
const CurrentSchemaVersion = 2

type migration struct {
	version    int
	name       string
	statements []string
}

const createMetaTable = `CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

const (
	createCategoriesTable = `CREATE TABLE categories (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	type      TEXT NOT NULL,
	icon      TEXT NOT NULL DEFAULT '',
	color     TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT 1
)`
	createTagsTable = `CREATE TABLE tags (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`
	createRecordTagsTable = `CREATE TABLE record_tags (
	record_id TEXT NOT NULL REFERENCES records(id) ON DELETE CASCADE,
	tag_id    TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (record_id, tag_id)
)`
)

var recordIndexes = []string{
	`CREATE INDEX idx_records_timestamp ON records(timestamp)`,
	`CREATE INDEX idx_records_account ON records(account_id)`,
	`CREATE INDEX idx_records_to_account ON records(to_account_id)`,
	`CREATE INDEX idx_records_category ON records(category_id)`,
}

// Money columns hold decimal strings from v2 on. Sums are folded in Go so
// that 0.1 + 0.2 stays 0.3.
var migrations = []migration{
	{
		version: 1,
		name:    "initial schema",
		statements: concat([]string{
			`CREATE TABLE accounts (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				type            TEXT NOT NULL,
				currency        TEXT NOT NULL,
				initial_balance REAL NOT NULL DEFAULT 0,
				credit_limit    REAL,
				is_active       BOOLEAN NOT NULL DEFAULT 1,
				created_at      INTEGER NOT NULL
			)`,
			createCategoriesTable,
			createTagsTable,
			`CREATE TABLE records (
				id            TEXT PRIMARY KEY,
				type          TEXT NOT NULL CHECK (type IN ('income', 'expense', 'transfer')),
				timestamp     INTEGER NOT NULL,
				amount        REAL NOT NULL CHECK (amount >= 0),
				account_id    TEXT NOT NULL REFERENCES accounts(id),
				to_account_id TEXT REFERENCES accounts(id),
				category_id   TEXT,
				description   TEXT,
				file_path     TEXT NOT NULL
			)`,
			createRecordTagsTable,
		}, recordIndexes),
	},
	{
		// The cache is rebuilt from the documents on open, so the rows are
		// dropped rather than converted.
		version: 2,
		name:    "decimal money columns",
		statements: concat([]string{
			`DROP TABLE record_tags`,
			`DROP TABLE records`,
			`DROP TABLE tags`,
			`DROP TABLE accounts`,
			`DROP TABLE categories`,
			`CREATE TABLE accounts (
				id              TEXT PRIMARY KEY,
				name            TEXT NOT NULL,
				type            TEXT NOT NULL,
				currency        TEXT NOT NULL,
				initial_balance TEXT NOT NULL DEFAULT '0',
				credit_limit    TEXT,
				is_active       BOOLEAN NOT NULL DEFAULT 1,
				created_at      INTEGER NOT NULL
			)`,
			createCategoriesTable,
			createTagsTable,
			`CREATE TABLE records (
				id            TEXT PRIMARY KEY,
				type          TEXT NOT NULL CHECK (type IN ('income', 'expense', 'transfer')),
				timestamp     INTEGER NOT NULL,
				amount        TEXT NOT NULL CHECK (CAST(amount AS REAL) >= 0),
				account_id    TEXT NOT NULL REFERENCES accounts(id),
				to_account_id TEXT REFERENCES accounts(id),
				category_id   TEXT,
				description   TEXT,
				file_path     TEXT NOT NULL
			)`,
			createRecordTagsTable,
		}, recordIndexes),
	},
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// dropOrder lists every cache table children first.
var dropOrder = []string{"record_tags", "records", "tags", "accounts", "categories", "meta"}

// Migrate brings the cache schema up to CurrentSchemaVersion. A cache written
// by a newer binary, or one whose version cannot be read, is dropped and
// rebuilt from scratch.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	ctx := context.Background()
	if err := db.Exec(createMetaTable).Error; err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}

	meta := NewMetaRepository(db)
	version, err := meta.SchemaVersion(ctx)
	if err != nil || version > CurrentSchemaVersion {
		log.Warn().Err(err).Int("found", version).Int("supported", CurrentSchemaVersion).
			Msg("cache schema unusable, recreating")
		if err := dropAll(db); err != nil {
			return err
		}
		version = 0
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			for _, stmt := range m.statements {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return NewMetaRepository(tx).Set(ctx, SchemaVersionKey, fmt.Sprint(m.version))
		})
		if err != nil {
			return fmt.Errorf("migrate db to v%d (%s): %w", m.version, m.name, err)
		}
		log.Debug().Int("version", m.version).Str("name", m.name).Msg("cache migration applied")
	}
	return nil
}

func dropAll(db *gorm.DB) error {
	for _, table := range dropOrder {
		if err := db.Exec("DROP TABLE IF EXISTS " + table).Error; err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if err := db.Exec(createMetaTable).Error; err != nil {
		return fmt.Errorf("recreate meta: %w", err)
	}
	return nil
}
