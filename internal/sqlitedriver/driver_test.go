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

package sqlitedriver_test

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudact/bqoptimizer/internal/sqlitedriver"
)

func TestDriverRegistered(t *testing.T) {
	assert.True(t, slices.Contains(sql.Drivers(), sqlitedriver.DriverName), "driver should be registered")
}

func TestOpen_Memory(t *testing.T) {
	t.Setenv("BQOPT_DB_KEY", "")

	db, err := sqlitedriver.Open(sqlitedriver.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE points (id TEXT PRIMARY KEY, payload TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO points (id, payload) VALUES (?, ?)", "a", `{"table_id":"p.d.t"}`)
	require.NoError(t, err)

	// Same database across statements despite the pool.
	var payload string
	err = db.QueryRow("SELECT payload FROM points WHERE id = ?", "a").Scan(&payload)
	require.NoError(t, err)
	assert.Equal(t, `{"table_id":"p.d.t"}`, payload)
}

func TestOpen_File(t *testing.T) {
	t.Setenv("BQOPT_DB_KEY", "")
	path := filepath.Join(t.TempDir(), "vectors.db")

	db, err := sqlitedriver.Open(sqlitedriver.Config{Path: path})
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = sqlitedriver.Open(sqlitedriver.Config{Path: path})
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestOpen_Errors(t *testing.T) {
	_, err := sqlitedriver.Open(sqlitedriver.Config{})
	assert.Error(t, err)

	if !sqlitedriver.EncryptionSupported {
		_, err = sqlitedriver.Open(sqlitedriver.Config{Path: ":memory:", EncryptionKey: "secret"})
		assert.ErrorIs(t, err, sqlitedriver.ErrEncryptionUnsupported)
	}
}

func TestIsMemory(t *testing.T) {
	assert.True(t, sqlitedriver.IsMemory(":memory:"))
	assert.True(t, sqlitedriver.IsMemory("file::memory:?cache=shared"))
	assert.False(t, sqlitedriver.IsMemory("/tmp/x.db"))
}
