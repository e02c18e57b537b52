package steve

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Open returns a handle to the SteVe database at dsn. parseTime is always
// turned on as expiry dates are scanned into time.Time.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid dsn: %w", err)
	}
	cfg.ParseTime = true
	return sql.Open("mysql", cfg.FormatDSN())
}
