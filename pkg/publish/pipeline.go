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
	"context"
	"log/slog"

	"github.com/gravitational/trace"

	"github.com/schoolbox/release-tools/pkg/logging"
)

// Uploader is the subset of the repository service API the pipeline drives.
// The aptly client satisfies it.
type Uploader interface {
	UploadFile(ctx context.Context, dir, path string) error
	AddPackageToRepo(ctx context.Context, repo, dir string) error
	CreateSnapshot(ctx context.Context, repo, name string) error
	PublishSwitch(ctx context.Context, storage, distribution, snapshot, component, passphrase string) error
}

// Pipeline runs a publication as four sequential stages: upload the package
// file, add it to the local repo, snapshot the repo, and switch the publish
// endpoint to the new snapshot. No stage is retried and no stage reads
// another stage's response; each request is fully determined by the resolved
// parameters.
type Pipeline struct {
	uploader Uploader
	logger   *slog.Logger
}

// NewPipeline returns a pipeline that publishes through the provided
// uploader.
func NewPipeline(uploader Uploader, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		uploader: uploader,
		logger:   logging.DiscardLogger,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Run executes the four stages in order. A failure in any of the first
// three stages aborts the run. A failure in the final publish stage is
// fatal only when params.Strict is set: the snapshot already exists at that
// point, so a non-strict run reports the problem and still succeeds,
// leaving the endpoint on its previous snapshot.
func (p *Pipeline) Run(ctx context.Context, params *Params) error {
	p.logger.InfoContext(ctx, "uploading package",
		"file", params.PackageFile, "dir", params.UploadDir)
	if err := p.uploader.UploadFile(ctx, params.UploadDir, params.PackageFile); err != nil {
		return trace.Wrap(err)
	}

	p.logger.InfoContext(ctx, "adding package to local repo",
		"repo", params.LocalRepo, "dir", params.UploadDir)
	if err := p.uploader.AddPackageToRepo(ctx, params.LocalRepo, params.UploadDir); err != nil {
		return trace.Wrap(err)
	}

	p.logger.InfoContext(ctx, "creating snapshot",
		"repo", params.LocalRepo, "snapshot", params.SnapshotName)
	if err := p.uploader.CreateSnapshot(ctx, params.LocalRepo, params.SnapshotName); err != nil {
		return trace.Wrap(err)
	}

	p.logger.InfoContext(ctx, "switching published repo to snapshot",
		"storage", params.Storage, "distribution", params.Distribution, "snapshot", params.SnapshotName)
	if err := p.uploader.PublishSwitch(ctx, params.Storage, params.Distribution,
		params.SnapshotName, params.Component, params.Passphrase); err != nil {
		if params.Strict {
			return trace.Wrap(err)
		}
		p.logger.WarnContext(ctx, "publish failed, endpoint still serves the previous snapshot",
			"snapshot", params.SnapshotName, "error", err)
	}

	return nil
}
