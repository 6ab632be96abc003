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

//go:build !cgo

package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

// Pure-Go builds register modernc under the same name so Open is unchanged.
func init() {
	sql.Register(DriverName, &sqlite.Driver{})
}

// EncryptionSupported is false: modernc.org/sqlite ignores PRAGMA key, so
// Open rejects an EncryptionKey instead of writing plaintext.
const EncryptionSupported = false
