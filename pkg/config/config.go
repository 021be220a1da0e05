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

package config

//go:generate go run github.com/schoolbox/release-tools/cmd/schemagen config.schema.json

// DefaultPath is where the tool looks for its config file when no path is
// given. A missing file is not an error; the defaults below apply.
const DefaultPath = "/etc/aptly-publish.yaml"

// Publish defines the tool's configuration. Every field has a working
// default so the tool can run in CI from flags alone.
type Publish struct {
	// APIURL is the base URL of the aptly REST API.
	APIURL string `json:"api_url,omitempty"`
	// UpstreamRepo is the reserved repo caching third-party packages. It is
	// excluded from every repo and endpoint lookup.
	UpstreamRepo string `json:"upstream_repo,omitempty"`
	// Component is the repo component snapshots are published under.
	Component string `json:"component,omitempty"`
	// Strict makes a publish-stage failure fatal instead of logged.
	Strict bool `json:"strict,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Publish {
	return &Publish{
		APIURL:       "http://localhost:8080/api",
		UpstreamRepo: "upstream",
		Component:    "main",
	}
}

// applyDefaults fills unset fields in from the defaults.
func (p *Publish) applyDefaults() {
	defaults := Default()
	if p.APIURL == "" {
		p.APIURL = defaults.APIURL
	}
	if p.UpstreamRepo == "" {
		p.UpstreamRepo = defaults.UpstreamRepo
	}
	if p.Component == "" {
		p.Component = defaults.Component
	}
}
