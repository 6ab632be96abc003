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

package warehouse

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/cloudresourcemanager/v1"
	"google.golang.org/api/option"
)

const activeState = "ACTIVE"

// ProjectLister enumerates the projects to analyze.
type ProjectLister struct {
	manual []string
	opts   []option.ClientOption
	logger *zap.Logger
}

// NewProjectLister creates a lister. manual is returned when the organization
// cannot be searched.
func NewProjectLister(manual []string, logger *zap.Logger, opts ...option.ClientOption) *ProjectLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectLister{manual: manual, opts: opts, logger: logger}
}

// OrganizationFilter builds a Resource Manager list filter scoping filter to
// organization orgID. Either part may be empty.
func OrganizationFilter(orgID, filter string) string {
	var parts []string
	if orgID != "" {
		parts = append(parts, "parent.type:organization parent.id:"+orgID)
	}
	if f := strings.TrimSpace(filter); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// List returns ACTIVE project ids matching filter. When the search fails or
// matches nothing, the manual list is returned instead.
func (l *ProjectLister) List(ctx context.Context, filter string) ([]string, error) {
	ids, err := l.search(ctx, filter)
	if err == nil && len(ids) > 0 {
		l.logger.Info("Listed projects", zap.Int("count", len(ids)), zap.String("filter", filter))
		return ids, nil
	}
	if err != nil {
		l.logger.Warn("Project search failed, using configured projects", zap.Error(err))
	}

	manual := dedupe(l.manual)
	if len(manual) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("no projects matched %q and none are configured", filter)
	}
	return manual, nil
}

func (l *ProjectLister) search(ctx context.Context, filter string) ([]string, error) {
	svc, err := cloudresourcemanager.NewService(ctx, l.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource manager service: %w", err)
	}

	var ids []string
	call := svc.Projects.List()
	if filter != "" {
		call = call.Filter(filter)
	}
	err = call.Pages(ctx, func(page *cloudresourcemanager.ListProjectsResponse) error {
		for _, p := range page.Projects {
			if p.LifecycleState == activeState {
				ids = append(ids, p.ProjectId)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// StaticProjects is a fixed project list, used when no organization is
// configured.
type StaticProjects []string

// List returns the deduplicated list, ignoring filter.
func (s StaticProjects) List(_ context.Context, _ string) ([]string, error) {
	ids := dedupe(s)
	if len(ids) == 0 {
		return nil, fmt.Errorf("no projects configured")
	}
	return ids, nil
}
