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

// Package publish resolves the parameters of a package publication and runs
// it as a fixed sequence of aptly API calls.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gravitational/trace"

	"github.com/schoolbox/release-tools/pkg/debfile"
	"github.com/schoolbox/release-tools/pkg/logging"
)

// DefaultUpstreamRepo is the reserved repo used to cache third-party
// packages. It is never a valid publication target.
const DefaultUpstreamRepo = "upstream"

// DefaultComponent is the repo component published snapshots are served
// under.
const DefaultComponent = "main"

// storagePrefix is the aptly storage kind every publish endpoint here lives
// on.
const storagePrefix = "s3:"

// PublishedEndpoint is one (storage, distribution) pair the repository
// service currently publishes.
type PublishedEndpoint struct {
	Storage      string
	Distribution string
}

// Directory lists what exists on the repository service. It is the only
// network capability the resolver needs, so tests can stand in a fake.
type Directory interface {
	ListRepos(ctx context.Context) ([]string, error)
	ListPublishedRepos(ctx context.Context) ([]PublishedEndpoint, error)
}

// Input is the raw, unvalidated CLI input.
type Input struct {
	PackageFile string
	LocalRepo   string
	Passphrase  string
	Strict      bool
}

// Params is the fully resolved, validated parameter set the pipeline runs
// with. It is computed once and never mutated.
type Params struct {
	PackageFile  string
	UploadDir    string
	Package      debfile.Package
	LocalRepo    string
	SnapshotName string
	Storage      string
	Distribution string
	Component    string
	Passphrase   string
	Strict       bool
}

// Resolver validates CLI input against the repository service and derives
// the remaining publication parameters from the local repo name.
type Resolver struct {
	directory    Directory
	upstreamRepo string
	component    string
	now          func() time.Time
}

// NewResolver returns a resolver that checks input against the provided
// directory.
func NewResolver(directory Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		directory:    directory,
		upstreamRepo: DefaultUpstreamRepo,
		component:    DefaultComponent,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve validates in and derives the full parameter set. Validation does
// not stop at the first problem: every local input error is reported in one
// aggregate, and if the local input is sound, every remote existence error
// is reported in one aggregate. No directory call is made while the local
// input is known to be bad.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Params, error) {
	var errs []error

	if in.Passphrase == "" {
		errs = append(errs, trace.BadParameter("a signing passphrase is required"))
	}

	var pkg *debfile.Package
	switch {
	case in.PackageFile == "":
		errs = append(errs, trace.BadParameter("a package file is required"))
	case !strings.HasSuffix(in.PackageFile, ".deb"):
		errs = append(errs, trace.BadParameter("package file %q must have a .deb extension", in.PackageFile))
	default:
		if _, err := os.Stat(in.PackageFile); err != nil {
			errs = append(errs, trace.BadParameter("package file %q is not readable: %v", in.PackageFile, err))
		} else if pkg, err = debfile.Inspect(in.PackageFile); err != nil {
			errs = append(errs, trace.Wrap(err))
		}
	}

	var storageToken, distribution string
	switch {
	case in.LocalRepo == "":
		errs = append(errs, trace.BadParameter("a local repo is required"))
	case in.LocalRepo == r.upstreamRepo:
		errs = append(errs, trace.BadParameter("%q is reserved for the upstream package cache", in.LocalRepo))
	default:
		var err error
		storageToken, distribution, err = SplitRepoName(in.LocalRepo)
		if err != nil {
			errs = append(errs, trace.Wrap(err))
		}
	}

	if len(errs) > 0 {
		return nil, trace.NewAggregate(errs...)
	}

	storage := storagePrefix + storageToken
	if err := r.checkDirectory(ctx, in.LocalRepo, storage, distribution); err != nil {
		return nil, trace.Wrap(err)
	}

	params := &Params{
		PackageFile:  in.PackageFile,
		UploadDir:    filepath.Base(in.PackageFile),
		Package:      *pkg,
		LocalRepo:    in.LocalRepo,
		SnapshotName: SnapshotName(in.LocalRepo, r.now()),
		Storage:      storage,
		Distribution: distribution,
		Component:    r.component,
		Passphrase:   in.Passphrase,
		Strict:       in.Strict,
	}

	logging.FromCtx(ctx).DebugContext(ctx, "resolved publish parameters",
		"package", params.Package.Name,
		"version", params.Package.Version,
		"architecture", params.Package.Architecture,
		"repo", params.LocalRepo,
		"snapshot", params.SnapshotName,
		"storage", params.Storage,
		"distribution", params.Distribution,
	)

	return params, nil
}

// checkDirectory verifies that the repo, storage and distribution all exist
// on the repository service, excluding the reserved upstream entries.
func (r *Resolver) checkDirectory(ctx context.Context, localRepo, storage, distribution string) error {
	repos, err := r.directory.ListRepos(ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	published, err := r.directory.ListPublishedRepos(ctx)
	if err != nil {
		return trace.Wrap(err)
	}

	var errs []error
	if !slices.Contains(repos, localRepo) || localRepo == r.upstreamRepo {
		errs = append(errs, trace.NotFound("local repo %q does not exist on the repository service", localRepo))
	}

	distributions := r.distributionsFor(published, storage)
	switch {
	case distributions == nil:
		errs = append(errs, trace.NotFound("no published endpoint uses storage %q", storage))
	case !slices.Contains(distributions, distribution):
		errs = append(errs, trace.NotFound("distribution %q is not published under %q (published: %s)",
			distribution, storage, strings.Join(distributions, ", ")))
	}

	return trace.NewAggregate(errs...)
}

// distributionsFor collects the distributions published under storage. A nil
// result means the storage itself is unknown. Endpoints on the reserved
// upstream storage are invisible.
func (r *Resolver) distributionsFor(published []PublishedEndpoint, storage string) []string {
	var distributions []string
	for _, endpoint := range published {
		if strings.TrimPrefix(endpoint.Storage, storagePrefix) == r.upstreamRepo {
			continue
		}
		if endpoint.Storage != storage {
			continue
		}
		if distributions == nil {
			distributions = []string{}
		}
		distributions = append(distributions, endpoint.Distribution)
	}

	slices.Sort(distributions)
	return distributions
}

// SnapshotName derives the snapshot name for a publication of localRepo at
// time t. Granularity is one minute: two publications of the same repo
// within a minute collide, which the repository service rejects on the
// snapshot call.
func SnapshotName(localRepo string, t time.Time) string {
	return fmt.Sprintf("%s-%s", localRepo, t.Format("200601021504"))
}

// SplitRepoName splits a local repo name of the form
// <storage>-<distribution> on its first hyphen. The distribution itself may
// contain hyphens ("schoolbox-unstable-bionic" publishes "unstable-bionic"
// on storage "schoolbox"). Names without a hyphen have no distribution to
// publish and are rejected.
func SplitRepoName(name string) (storageToken, distribution string, err error) {
	storageToken, distribution, ok := strings.Cut(name, "-")
	if !ok || storageToken == "" || distribution == "" {
		return "", "", trace.BadParameter("repo name %q must have the form <storage>-<distribution>", name)
	}

	return storageToken, distribution, nil
}
