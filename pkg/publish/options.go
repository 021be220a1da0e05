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

package publish

import (
	"log/slog"
	"time"

	"github.com/schoolbox/release-tools/pkg/logging"
)

// ResolverOption provides optional configuration to the resolver.
type ResolverOption func(r *Resolver)

// WithUpstreamRepo overrides the reserved upstream cache repo name.
func WithUpstreamRepo(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.upstreamRepo = name
		}
	}
}

// WithComponent overrides the component snapshots are published under.
func WithComponent(component string) ResolverOption {
	return func(r *Resolver) {
		if component != "" {
			r.component = component
		}
	}
}

// WithClock overrides the time source used to derive snapshot names.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// PipelineOption provides optional configuration to the pipeline.
type PipelineOption func(p *Pipeline)

// WithLogger configures the pipeline with the provided logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger == nil {
			logger = logging.DiscardLogger
		}
		p.logger = logger
	}
}
