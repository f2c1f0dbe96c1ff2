package serialize

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"sx/internal/alg"
)

// Store is a database/sql-backed persistence layer for compiled functions,
// keyed by a uuid.UUID identity and a civil.Date compiled-on column.
// Unlike a security-scanning connection pool, this Store exists for one
// purpose: round-tripping serialized alg.Function byte streams.
type Store struct {
	db     *sql.DB
	driver string
}

// Open parses dsn's scheme to pick a driver, dispatching on the scheme much
// like a dbType string, then opens and pings it. Recognized schemes:
// "sqlite"/"sqlite3", "mysql", "postgres"/"postgresql", "sqlserver"/"mssql".
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, driverDSN, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("serialize: opening %s store: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("serialize: pinging %s store: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func splitDSN(dsn string) (driver, driverDSN string, err error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", fmt.Errorf("serialize: parsing dsn: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "sqlite", "sqlite3":
		// modernc.org/sqlite takes a plain file path, not a URL.
		path := u.Opaque
		if path == "" {
			path = u.Path
		}
		return "sqlite", path, nil
	case "mysql":
		// go-sql-driver/mysql wants "user:pass@tcp(host:port)/db", i.e. the
		// DSN with the scheme stripped.
		return "mysql", strings.TrimPrefix(dsn, u.Scheme+"://"), nil
	case "postgres", "postgresql":
		// lib/pq accepts a postgres:// URL unchanged.
		return "postgres", dsn, nil
	case "sqlserver", "mssql":
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("serialize: unsupported store scheme %q", u.Scheme)
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case "sqlite":
		ddl = `CREATE TABLE IF NOT EXISTS sx_functions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			compiled_on TEXT NOT NULL,
			payload BLOB NOT NULL
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS sx_functions (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			compiled_on DATE NOT NULL,
			payload BLOB NOT NULL
		)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("serialize: creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ph returns the n-th bind placeholder in this store's driver dialect:
// lib/pq is the one driver here that rejects "?" and wants "$n".
func (s *Store) ph(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Put serializes f and stores it under a fresh uuid.UUID identity, tagged
// with today's compile date. It returns the identity the caller must keep
// to retrieve it with Get.
func (s *Store) Put(ctx context.Context, f *alg.Function) (uuid.UUID, error) {
	var buf bytes.Buffer
	if err := Serialize(&buf, f); err != nil {
		return uuid.UUID{}, fmt.Errorf("serialize: encoding %q: %w", f.Name, err)
	}

	id := uuid.New()
	compiledOn := civil.DateOf(time.Now())

	query := fmt.Sprintf(`INSERT INTO sx_functions (id, name, compiled_on, payload) VALUES (%s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err := s.db.ExecContext(ctx, query, id.String(), f.Name, compiledOn.String(), buf.Bytes())
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("serialize: storing %q: %w", f.Name, err)
	}
	return id, nil
}

// Get loads the function stored under id and resolves its call-table
// entries via resolve, the finalize step.
func (s *Store) Get(ctx context.Context, id uuid.UUID, resolve Resolver) (*alg.Function, error) {
	var payload []byte
	query := fmt.Sprintf(`SELECT payload FROM sx_functions WHERE id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id.String())
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("serialize: no function with id %s", id)
		}
		return nil, fmt.Errorf("serialize: loading %s: %w", id, err)
	}

	f, err := Deserialize(bytes.NewReader(payload), resolve)
	if err != nil {
		return nil, fmt.Errorf("serialize: decoding %s: %w", id, err)
	}
	return f, nil
}

// CompiledOn returns the civil.Date a stored function was compiled on,
// without paying the cost of decoding its payload.
func (s *Store) CompiledOn(ctx context.Context, id uuid.UUID) (civil.Date, error) {
	var raw string
	query := fmt.Sprintf(`SELECT compiled_on FROM sx_functions WHERE id = %s`, s.ph(1))
	row := s.db.QueryRowContext(ctx, query, id.String())
	if err := row.Scan(&raw); err != nil {
		return civil.Date{}, fmt.Errorf("serialize: loading compiled_on for %s: %w", id, err)
	}
	return civil.ParseDate(raw)
}
