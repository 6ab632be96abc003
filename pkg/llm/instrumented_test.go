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

package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	reply string
	err   error
}

func (s stubOracle) Generate(_ context.Context, _ GenerateRequest) (string, error) {
	return s.reply, s.err
}

func (s stubOracle) Name() string { return "stub" }

func TestInstrumentedOracle_Success(t *testing.T) {
	o := NewInstrumentedOracle(stubOracle{reply: "partition the table by day"}, nil)
	assert.Equal(t, "stub", o.Name())

	text, err := o.Generate(context.Background(), GenerateRequest{Prompt: "SELECT * FROM t"})
	require.NoError(t, err)
	assert.Equal(t, "partition the table by day", text)

	stats := o.Stats()
	assert.Equal(t, 1, stats.Calls)
	assert.Equal(t, 0, stats.Errors)
	assert.Positive(t, stats.PromptTokens)
	assert.Positive(t, stats.OutputTokens)
}

func TestInstrumentedOracle_Error(t *testing.T) {
	o := NewInstrumentedOracle(stubOracle{err: ErrOracleUnavailable}, nil)

	_, err := o.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	assert.True(t, errors.Is(err, ErrOracleUnavailable))

	stats := o.Stats()
	assert.Equal(t, 1, stats.Calls)
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.OutputTokens)
}

func TestInstrumentedOracle_Concurrent(t *testing.T) {
	o := NewInstrumentedOracle(stubOracle{reply: "ok"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Generate(context.Background(), GenerateRequest{Prompt: "q"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, o.Stats().Calls)
}

func TestInstrumentedOracle_Unwrap(t *testing.T) {
	inner := stubOracle{reply: "x"}
	o := NewInstrumentedOracle(inner, nil)
	assert.Equal(t, Oracle(inner), o.Unwrap())
}
