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
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbox/release-tools/pkg/aptly"
	"github.com/schoolbox/release-tools/pkg/publish"
)

// fakeAptlyServer implements the API subset the tool uses and records every
// request it serves, in order.
type fakeAptlyServer struct {
	requests []string
}

func (s *fakeAptlyServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requests = append(s.requests, fmt.Sprintf("%s %s", r.Method, r.URL.Path))

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/repos":
			io.WriteString(w, `[{"Name":"ubuntu-bionic"},{"Name":"upstream"}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/publish":
			io.WriteString(w, `[{"Storage":"s3:ubuntu","Distribution":"bionic"},{"Storage":"s3:upstream","Distribution":"bionic"}]`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

func writeTestDeb(t *testing.T) string {
	t.Helper()

	control := "Package: php-sqlanywhere\nVersion: 1.0.2-1\nArchitecture: amd64\n"

	var controlTar bytes.Buffer
	gzWriter := gzip.NewWriter(&controlTar)
	tarWriter := tar.NewWriter(gzWriter)
	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name:    "./control",
		Mode:    0644,
		Size:    int64(len(control)),
		ModTime: time.Now(),
	}))
	_, err := tarWriter.Write([]byte(control))
	require.NoError(t, err)
	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())

	var deb bytes.Buffer
	arWriter := ar.NewWriter(&deb)
	require.NoError(t, arWriter.WriteGlobalHeader())
	for _, member := range []struct {
		name string
		body []byte
	}{
		{name: "debian-binary", body: []byte("2.0\n")},
		{name: "control.tar.gz", body: controlTar.Bytes()},
	} {
		require.NoError(t, arWriter.WriteHeader(&ar.Header{
			Name:    member.name,
			Mode:    0644,
			Size:    int64(len(member.body)),
			ModTime: time.Now(),
		}))
		_, err := arWriter.Write(member.body)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "php-sqlanywhere_1.0.2-1_amd64.deb")
	require.NoError(t, os.WriteFile(path, deb.Bytes(), 0644))
	return path
}

func TestPublishEndToEnd(t *testing.T) {
	fake := &fakeAptlyServer{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	debPath := writeTestDeb(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	client := aptly.NewClient(srv.URL+"/api", aptly.WithHTTPClient(srv.Client()))
	resolver := publish.NewResolver(&aptlyDirectory{client: client},
		publish.WithClock(func() time.Time { return at }),
	)

	params, err := resolver.Resolve(t.Context(), publish.Input{
		PackageFile: debPath,
		LocalRepo:   "ubuntu-bionic",
		Passphrase:  "hunter2",
	})
	require.NoError(t, err)

	pipeline := publish.NewPipeline(client)
	require.NoError(t, pipeline.Run(t.Context(), params))

	assert.Equal(t, []string{
		"GET /api/repos",
		"GET /api/publish",
		"POST /api/files/php-sqlanywhere_1.0.2-1_amd64.deb",
		"POST /api/repos/ubuntu-bionic/file/php-sqlanywhere_1.0.2-1_amd64.deb",
		"POST /api/repos/ubuntu-bionic/snapshots",
		"PUT /api/publish/s3:ubuntu:/bionic",
	}, fake.requests)
}

func TestResolveFailureIssuesNoRequests(t *testing.T) {
	fake := &fakeAptlyServer{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := aptly.NewClient(srv.URL+"/api", aptly.WithHTTPClient(srv.Client()))
	resolver := publish.NewResolver(&aptlyDirectory{client: client})

	_, err := resolver.Resolve(t.Context(), publish.Input{
		PackageFile: "package.rpm",
		LocalRepo:   "ubuntu-bionic",
		Passphrase:  "hunter2",
	})

	assert.Error(t, err)
	assert.Empty(t, fake.requests)
}
