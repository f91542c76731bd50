package repos

import (
	"database/sql/driver"
	"fmt"
	"log"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLite's built-in LOWER only folds ASCII, so "CONEXÃO" would never match
// "conexão". ulower folds with Go's Unicode tables instead.
func init() {
	sqlite.MustRegisterDeterministicScalarFunction("ulower", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return v, nil
		}
	})
}

// lowerFunc names the SQL function that lowercases text the same way
// strings.ToLower does on the Go side.
func lowerFunc(db *sqlx.DB) string {
	if db.DriverName() == DriverSQLite {
		return "ulower"
	}
	return "LOWER"
}

// OpenDB opens the embedded SQLite store. Tests use ":memory:".
func OpenDB(dsn string) (*sqlx.DB, error) {
	return Open(DriverSQLite, dsn)
}

// Open connects to either SQLite or a managed Postgres and makes sure the
// tables this service reads and writes exist.
func Open(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps ":memory:" databases alive and serialises writers
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(db.Rebind(`
		INSERT INTO code_sequences(name, last_value) VALUES (?, 0)
		ON CONFLICT(name) DO NOTHING`), newProductSequence)
	return err
}

const sqliteSchema = `
PRAGMA foreign_keys = ON;

-- Reference catalog (owned by the ERP export, read-only here)
CREATE TABLE IF NOT EXISTS produtos_referencia(
  codprod    TEXT PRIMARY KEY,
  refforn    TEXT NOT NULL DEFAULT '',
  descrprod  TEXT NOT NULL DEFAULT '',
  compldesc  TEXT NOT NULL DEFAULT '',
  marca      TEXT NOT NULL DEFAULT '',
  referencia TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ref_referencia ON produtos_referencia(referencia)
  WHERE referencia IS NOT NULL AND referencia <> '';
CREATE INDEX IF NOT EXISTS idx_ref_refforn ON produtos_referencia(LOWER(refforn));

-- Count records
CREATE TABLE IF NOT EXISTS produtos_inseridos(
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  codprod   TEXT NOT NULL,
  qtd       INTEGER NOT NULL CHECK (qtd > 0),
  novo      TEXT NOT NULL DEFAULT 'N' CHECK (novo IN ('S','N')),
  descrprod TEXT,
  codbarra  TEXT,
  dtinsert  TEXT NOT NULL,
  CHECK (novo = 'N' OR (descrprod IS NOT NULL AND TRIM(descrprod) <> ''))
);
CREATE INDEX IF NOT EXISTS idx_inseridos_dtinsert ON produtos_inseridos(dtinsert);

-- Atomic code allocation for products registered during a count
CREATE TABLE IF NOT EXISTS code_sequences(
  name       TEXT PRIMARY KEY,
  last_value INTEGER NOT NULL
);

-- Operators & Sessions
CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('OPERATOR','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS produtos_referencia(
  codprod    TEXT PRIMARY KEY,
  refforn    TEXT NOT NULL DEFAULT '',
  descrprod  TEXT NOT NULL DEFAULT '',
  compldesc  TEXT NOT NULL DEFAULT '',
  marca      TEXT NOT NULL DEFAULT '',
  referencia TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ref_referencia ON produtos_referencia(referencia)
  WHERE referencia IS NOT NULL AND referencia <> '';
CREATE INDEX IF NOT EXISTS idx_ref_refforn ON produtos_referencia(LOWER(refforn));

CREATE TABLE IF NOT EXISTS produtos_inseridos(
  id        BIGSERIAL PRIMARY KEY,
  codprod   TEXT NOT NULL,
  qtd       INTEGER NOT NULL CHECK (qtd > 0),
  novo      TEXT NOT NULL DEFAULT 'N' CHECK (novo IN ('S','N')),
  descrprod TEXT,
  codbarra  TEXT,
  dtinsert  TEXT NOT NULL,
  CHECK (novo = 'N' OR (descrprod IS NOT NULL AND TRIM(descrprod) <> ''))
);
CREATE INDEX IF NOT EXISTS idx_inseridos_dtinsert ON produtos_inseridos(dtinsert);

CREATE TABLE IF NOT EXISTS code_sequences(
  name       TEXT PRIMARY KEY,
  last_value BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('OPERATOR','ADMIN')),
  created_at TIMESTAMPTZ DEFAULT now()
);
CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ DEFAULT now(),
  last_seen  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`

// seedIfEmpty loads a handful of demo catalog rows into an empty catalog so a
// fresh install can be exercised before the first real import.
func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM produtos_referencia`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo catalog")

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows := []struct{ code, ref, desc, compl, brand, barcode string }{
		{"P001", "DCH26", "Parafuso M6", "Sextavado zincado 6x30", "Ciser", "7891000100011"},
		{"P002", "DCH27", "Parafuso M8", "Sextavado zincado 8x40", "Ciser", "7891000100028"},
		{"P003", "TRX-10", "Trena 5m", "Trena emborrachada", "Tramontina", "7891112223335"},
		{"P004", "FIT-3", "Fita isolante 20m", "", "3M", ""},
	}
	for _, r := range rows {
		var barcode any
		if r.barcode != "" {
			barcode = r.barcode
		}
		if _, err := tx.Exec(db.Rebind(`
			INSERT INTO produtos_referencia(codprod, refforn, descrprod, compldesc, marca, referencia)
			VALUES (?, ?, ?, ?, ?, ?)`), r.code, r.ref, r.desc, r.compl, r.brand, barcode); err != nil {
			return err
		}
	}
	return tx.Commit()
}
