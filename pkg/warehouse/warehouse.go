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

// Package warehouse adapts BigQuery to the collection and output stages: it lists
// table metadata, reads query history from INFORMATION_SCHEMA.JOBS, enumerates
// projects and writes the optimization suggestions table.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrProjectRequired is returned when no project id was supplied.
var ErrProjectRequired = errors.New("project id is required")

// NewClient opens a BigQuery client billed to projectID.
func NewClient(ctx context.Context, projectID string, opts ...option.ClientOption) (*bigquery.Client, error) {
	if projectID == "" {
		return nil, ErrProjectRequired
	}
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bigquery client for %s: %w", projectID, err)
	}
	return client, nil
}

// IsNotFound reports whether err is an HTTP 404 from a Google API.
func IsNotFound(err error) bool {
	return hasCode(err, http.StatusNotFound)
}

// isUnavailable covers the codes BigQuery returns for a project without the
// API enabled or without access.
func isUnavailable(err error) bool {
	return hasCode(err, http.StatusNotFound, http.StatusBadRequest, http.StatusForbidden)
}

func hasCode(err error, codes ...int) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	for _, c := range codes {
		if gErr.Code == c {
			return true
		}
	}
	return false
}
