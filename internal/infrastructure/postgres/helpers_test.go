package postgres

import "database/sql"

func openSQL(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}
