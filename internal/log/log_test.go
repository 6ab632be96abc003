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

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	tests := []struct {
		level, format string
		enabled       zapcore.Level
		disabled      zapcore.Level
		wantErr       bool
	}{
		{level: "", format: "", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
		{level: "debug", format: "text", enabled: zapcore.DebugLevel},
		{level: "WARN", format: "json", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{level: "error", format: "console", enabled: zapcore.ErrorLevel, disabled: zapcore.WarnLevel},
		{level: "trace", wantErr: true},
		{level: "info", format: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			l, err := Setup(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Same(t, l, Logger())
			assert.True(t, l.Core().Enabled(tt.enabled))
			if tt.disabled != tt.enabled {
				assert.False(t, l.Core().Enabled(tt.disabled))
			}
		})
	}
}

func TestSetLoggerNil(t *testing.T) {
	SetLogger(nil)
	assert.NotNil(t, Logger())
	assert.False(t, Logger().Core().Enabled(zapcore.ErrorLevel))

	custom := zap.NewExample()
	SetLogger(custom)
	assert.Same(t, custom, Logger())
	SetLogger(nil)
}
