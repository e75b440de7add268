package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/gabrielfriasw/srf-escolas-sub000/core"
	appfs "github.com/gabrielfriasw/srf-escolas-sub000/fs"
)

// Supported engines
const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite3"
	EngineMemory   = "memory" // in-process maps, see storage/database/dummy
)

const migrationsDir = "migrations"

func pgDSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN returns a DSN for the sqlite file at path (":memory:" works) with foreign keys enforced.
func SQLiteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	if !strings.HasSuffix(path, ".db") {
		path += ".db"
	}
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}

// DSN returns the data source name of the configured database.
func DSN(conf *core.Config) string {
	if conf.Database.Engine == EngineSQLite {
		return SQLiteDSN(conf.Database.Name)
	}
	return pgDSN(conf.Database.Name, false, conf)
}

// Open connects to the configured database and waits until it answers.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		return openAndPing(EnginePostgres, pgDSN(conf.Database.Name, false, conf))
	case EngineSQLite:
		return OpenSQLite(conf.Database.Name)
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

// OpenSQLite opens the sqlite database at path. A single connection is used so that
// ":memory:" databases are shared by every query and writes are serialized.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := openAndPing(EngineSQLite, SQLiteDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func openAndPing(driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query string, args ...interface{}) (bool, error) {
	var found bool
	err := db.QueryRowContext(context.Background(), query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD '%s'", conf.Database.User, conf.Database.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user and database. Other engines need no setup.
func CreateIfNotExist(conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}

	// connect as admin
	admin, err := openAndPing(EnginePostgres, pgDSN("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "connecting as admin")
	}
	defer func() { _ = admin.Close() }()
	if err = createAppUser(admin.DB, conf); err != nil {
		return err
	}

	// create DB as app user
	db, err := openAndPing(EnginePostgres, pgDSN("postgres", false, conf))
	if err != nil {
		return errors.Wrap(err, "connecting as app user")
	}
	defer func() { _ = db.Close() }()
	return createDB(db.DB, conf)
}

// RunMigrations runs a goose command (up, down, status, version...) against the embedded migrations.
func RunMigrations(db *sqlx.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := goose.Run(command, db.DB, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}

func Migrate(db *sqlx.DB) error {
	return RunMigrations(db, "up")
}
