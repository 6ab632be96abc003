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

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "BQOPT_DATA_DIR"

// DataDir returns the directory holding the config file and the local vector
// database: $BQOPT_DATA_DIR when set, else ~/.bqoptimizer.
//
// The result is absolute, with a leading ~ expanded. It is read straight from
// the environment because it locates the config file itself.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return expandPath(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bqoptimizer"
	}
	return filepath.Join(home, ".bqoptimizer")
}

// SubDir returns a directory below DataDir.
func SubDir(name string) string {
	return filepath.Join(DataDir(), name)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
