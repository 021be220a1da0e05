/*
 *  Copyright 2025 Schoolbox
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

package main

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/schoolbox/release-tools/pkg/aptly"
	"github.com/schoolbox/release-tools/pkg/publish"
)

// aptlyDirectory adapts [aptly.Client] to the resolver's directory
// capability.
type aptlyDirectory struct {
	client *aptly.Client
}

var _ publish.Directory = (*aptlyDirectory)(nil)

func (d *aptlyDirectory) ListRepos(ctx context.Context) ([]string, error) {
	repos, err := d.client.ListRepos(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	names := make([]string, 0, len(repos))
	for _, repo := range repos {
		names = append(names, repo.Name)
	}

	return names, nil
}

func (d *aptlyDirectory) ListPublishedRepos(ctx context.Context) ([]publish.PublishedEndpoint, error) {
	published, err := d.client.ListPublishedRepos(ctx)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	endpoints := make([]publish.PublishedEndpoint, 0, len(published))
	for _, p := range published {
		endpoints = append(endpoints, publish.PublishedEndpoint{
			Storage:      p.Storage,
			Distribution: p.Distribution,
		})
	}

	return endpoints, nil
}
