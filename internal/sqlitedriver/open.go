// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlitedriver

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DriverName is the database/sql driver registered by this package.
const DriverName = "sqlite3"

// ErrEncryptionUnsupported is returned when a key is supplied to a build
// without SQLCipher.
var ErrEncryptionUnsupported = errors.New("sqlite encryption requires a CGO build")

// Config describes a database to open.
type Config struct {
	// Path to the database file, or ":memory:"
	Path string

	// EncryptionKey enables SQLCipher. Default: $BQOPT_DB_KEY
	EncryptionKey string

	// BusyTimeoutMs defaults to 5000
	BusyTimeoutMs int
}

// IsMemory reports whether path names an in-memory database.
func IsMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// Open opens the database, applies the key when set, and enables WAL mode and
// a busy timeout for file databases.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	key := cfg.EncryptionKey
	if key == "" {
		key = os.Getenv("BQOPT_DB_KEY")
	}
	if key != "" && !EncryptionSupported {
		return nil, ErrEncryptionUnsupported
	}
	if cfg.BusyTimeoutMs == 0 {
		cfg.BusyTimeoutMs = 5000
	}

	db, err := sql.Open(DriverName, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if IsMemory(cfg.Path) {
		db.SetMaxOpenConns(1)
	}

	if key != "" {
		// Must be the first statement on the connection.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s'", strings.ReplaceAll(key, "'", "''"))); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set encryption key: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		if key != "" {
			return nil, fmt.Errorf("failed to verify encryption key (wrong key or corrupted database): %w", err)
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if !IsMemory(cfg.Path) {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMs)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}
