package sqlite

import "database/sql"

// DB exposes the handle so tests can plant rows the API would refuse.
func (s *Store) DB() *sql.DB { return s.db }
