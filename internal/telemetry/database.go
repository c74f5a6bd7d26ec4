package telemetry

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OpenDB opens an instrumented Postgres handle. When schema is set it is
// passed to the server as search_path on every pooled connection.
func OpenDB(dsn, schema string) (*sql.DB, error) {
	if schema != "" {
		withPath, err := WithSearchPath(dsn, schema)
		if err != nil {
			return nil, err
		}
		dsn = withPath
	}

	return otelsql.Open("postgres", dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
	)
}

// WithSearchPath adds search_path to a lib/pq DSN, either a postgres:// URL
// or a key=value connection string. lib/pq forwards unknown parameters to
// the server as run-time settings.
func WithSearchPath(dsn, schema string) (string, error) {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return strings.TrimSpace(dsn) + " search_path=" + quoteValue(schema), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse postgres url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// quoteValue quotes a key=value DSN value when it contains spaces, quotes
// or backslashes.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
