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

// aptly-publish uploads a Debian package to an aptly server, adds it to a
// local repo, snapshots the repo and republishes the snapshot to the repo's
// publish endpoint.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"

	"github.com/schoolbox/release-tools/pkg/aptly"
	"github.com/schoolbox/release-tools/pkg/config"
	"github.com/schoolbox/release-tools/pkg/logging"
	"github.com/schoolbox/release-tools/pkg/publish"
)

const envVarPrefix = "APTLY_PUBLISH_"

var (
	packageFile = kingpin.Flag("package", "Path to the .deb package to publish.").
			Envar(envVarPrefix + "PACKAGE").String()
	localRepo = kingpin.Flag("local-repo", "Target local repo, named <storage>-<distribution>.").
			Envar(envVarPrefix + "LOCAL_REPO").String()
	passphrase = kingpin.Flag("passphrase", "Passphrase of the repo signing key.").
			Envar(envVarPrefix + "PASSPHRASE").String()
	apiURL = kingpin.Flag("api-url", "Base URL of the aptly REST API. Overrides the config file.").
		Envar(envVarPrefix + "API_URL").String()
	strict = kingpin.Flag("strict", "Treat a failure of the final publish stage as fatal.").
		Envar(envVarPrefix + "STRICT").Bool()
	configFile = kingpin.Flag("config-file", "Path to the config file.").
			Short('c').Envar(envVarPrefix + "CONFIG_FILE").Default(config.DefaultPath).String()
	debug = kingpin.Flag("debug", "Enable debug logging.").
		Envar(envVarPrefix + "DEBUG").Bool()
)

func main() {
	kingpin.MustParse(kingpin.CommandLine.Parse(os.Args[1:]))

	logger := logging.NewLogger(os.Stderr, *debug)
	if err := run(logger); err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.ParsePublishConfigFile(*configFile)
	if err != nil {
		return trace.Wrap(err, "loading config from %q", *configFile)
	}
	if *apiURL != "" {
		cfg.APIURL = *apiURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = logging.ToCtx(ctx, logger)

	client := aptly.NewClient(cfg.APIURL, aptly.WithLogger(logger))

	resolver := publish.NewResolver(&aptlyDirectory{client: client},
		publish.WithUpstreamRepo(cfg.UpstreamRepo),
		publish.WithComponent(cfg.Component),
	)

	params, err := resolver.Resolve(ctx, publish.Input{
		PackageFile: *packageFile,
		LocalRepo:   *localRepo,
		Passphrase:  *passphrase,
		Strict:      *strict || cfg.Strict,
	})
	if err != nil {
		return trace.Wrap(err)
	}

	pipeline := publish.NewPipeline(client, publish.WithLogger(logger))
	if err := pipeline.Run(ctx, params); err != nil {
		return trace.Wrap(err)
	}

	logger.Info("package published",
		"package", params.Package.Name,
		"version", params.Package.Version,
		"snapshot", params.SnapshotName,
	)
	return nil
}
