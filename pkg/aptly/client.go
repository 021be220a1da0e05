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

// Package aptly is a thin client for the subset of the aptly REST API used
// to publish Debian packages: file upload, local repo ingestion, snapshot
// creation and publish switching.
//
// API reference: https://www.aptly.info/doc/api/
package aptly

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gravitational/trace"

	"github.com/schoolbox/release-tools/pkg/logging"
)

// maxErrorBodyBytes bounds how much of an error response body is carried in
// the returned error.
const maxErrorBodyBytes = 512

// Repo is a local (mutable) package repository on the aptly server.
type Repo struct {
	Name string `json:"Name"`
}

// PublishedRepo is one published endpoint: a (storage, distribution) pair
// serving a snapshot over a read path.
type PublishedRepo struct {
	Storage      string `json:"Storage"`
	Prefix       string `json:"Prefix"`
	Distribution string `json:"Distribution"`
}

// Client talks to a single aptly API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient returns a client for the aptly API rooted at baseURL
// (e.g. "http://localhost:8080/api").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     logging.DiscardLogger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListRepos returns all local repos known to the server.
func (c *Client) ListRepos(ctx context.Context) ([]Repo, error) {
	var repos []Repo
	if err := c.getJSON(ctx, "/repos", &repos); err != nil {
		return nil, trace.Wrap(err, "listing local repos")
	}

	return repos, nil
}

// ListPublishedRepos returns all published endpoints known to the server.
func (c *Client) ListPublishedRepos(ctx context.Context) ([]PublishedRepo, error) {
	var published []PublishedRepo
	if err := c.getJSON(ctx, "/publish", &published); err != nil {
		return nil, trace.Wrap(err, "listing published repos")
	}

	return published, nil
}

// UploadFile uploads the file at path into the server-side upload directory
// dir via a multipart POST.
func (c *Client) UploadFile(ctx context.Context, dir, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return trace.ConvertSystemError(err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return trace.Wrap(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return trace.Wrap(err, "reading package file %q", path)
	}
	if err := mw.Close(); err != nil {
		return trace.Wrap(err)
	}

	endpoint := "/files/" + url.PathEscape(dir)
	if err := c.do(ctx, http.MethodPost, endpoint, mw.FormDataContentType(), &body); err != nil {
		return trace.Wrap(err, "uploading %q to directory %q", path, dir)
	}

	return nil
}

// AddPackageToRepo ingests all packages previously uploaded to directory dir
// into the local repo named repo.
func (c *Client) AddPackageToRepo(ctx context.Context, repo, dir string) error {
	endpoint := "/repos/" + url.PathEscape(repo) + "/file/" + url.PathEscape(dir)
	if err := c.do(ctx, http.MethodPost, endpoint, "", nil); err != nil {
		return trace.Wrap(err, "adding upload directory %q to repo %q", dir, repo)
	}

	return nil
}

// CreateSnapshot creates an immutable snapshot called name from the current
// contents of the local repo named repo.
func (c *Client) CreateSnapshot(ctx context.Context, repo, name string) error {
	body, err := json.Marshal(struct {
		Name string `json:"Name"`
	}{Name: name})
	if err != nil {
		return trace.Wrap(err)
	}

	endpoint := "/repos/" + url.PathEscape(repo) + "/snapshots"
	if err := c.do(ctx, http.MethodPost, endpoint, "application/json", bytes.NewReader(body)); err != nil {
		return trace.Wrap(err, "creating snapshot %q of repo %q", name, repo)
	}

	return nil
}

// PublishSwitch points the published endpoint identified by (storage,
// distribution) at the named snapshot, re-signing the repo indexes with the
// provided passphrase. Batch mode is always requested so the server never
// prompts for the passphrase interactively.
func (c *Client) PublishSwitch(ctx context.Context, storage, distribution, snapshot, component, passphrase string) error {
	type signing struct {
		Batch      bool   `json:"Batch"`
		Passphrase string `json:"Passphrase"`
	}
	type snapshotRef struct {
		Component string `json:"Component"`
		Name      string `json:"Name"`
	}

	body, err := json.Marshal(struct {
		Signing   signing       `json:"Signing"`
		Snapshots []snapshotRef `json:"Snapshots"`
	}{
		Signing:   signing{Batch: true, Passphrase: passphrase},
		Snapshots: []snapshotRef{{Component: component, Name: snapshot}},
	})
	if err != nil {
		return trace.Wrap(err)
	}

	// The storage prefix keeps aptly's "<storage>:" separator verbatim, the
	// same form `aptly publish` prints in its own listings.
	endpoint := "/publish/" + storage + ":/" + url.PathEscape(distribution)
	if err := c.do(ctx, http.MethodPut, endpoint, "application/json", bytes.NewReader(body)); err != nil {
		return trace.Wrap(err, "switching %s/%s to snapshot %q", storage, distribution, snapshot)
	}

	return nil
}

// getJSON issues a GET and decodes a 2xx JSON response into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return trace.Wrap(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return trace.Wrap(err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return trace.Wrap(err)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return trace.Wrap(err, "decoding response from %s", endpoint)
	}

	return nil
}

// do issues a request whose response body is only interesting on failure.
func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return trace.Wrap(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.DebugContext(ctx, "issuing aptly API request", "method", method, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return trace.Wrap(err)
	}
	defer resp.Body.Close()

	return trace.Wrap(checkResponse(resp))
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return trace.Errorf("aptly API returned %s for %s %s: %s",
		resp.Status, resp.Request.Method, resp.Request.URL.Path, strings.TrimSpace(string(snippet)))
}
