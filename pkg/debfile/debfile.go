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

// Package debfile reads identifying metadata out of Debian binary packages.
package debfile

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
	"github.com/gravitational/trace"
)

// Package holds the identifying fields of a .deb control stanza.
type Package struct {
	Name         string
	Version      string
	Architecture string
}

// Inspect opens the .deb file at path and returns the package identity from
// its control stanza. An error means the file is not a readable Debian
// binary package.
func Inspect(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()

	control, err := extractControl(f)
	if err != nil {
		return nil, trace.Wrap(err, "reading control stanza from %q", path)
	}

	pkg := parseControl(control)
	if pkg.Name == "" || pkg.Version == "" {
		return nil, trace.BadParameter("control stanza in %q is missing the Package or Version field", path)
	}

	return pkg, nil
}

// extractControl walks the .deb's ar members looking for the control
// archive, then pulls the `control` file out of that tarball. Only plain and
// gzip-compressed control archives are handled; dpkg-deb produces gzip by
// default.
func extractControl(r io.Reader) (string, error) {
	arReader := ar.NewReader(r)

	for {
		header, err := arReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", trace.Wrap(err, "reading ar archive")
		}

		// Member names may carry a trailing "/" (GNU ar convention).
		name := strings.TrimSuffix(header.Name, "/")
		if !strings.HasPrefix(name, "control.tar") {
			continue
		}

		memberData := make([]byte, header.Size)
		if _, err := io.ReadFull(arReader, memberData); err != nil {
			return "", trace.Wrap(err, "reading archive member %q", name)
		}

		var tarReader *tar.Reader
		switch {
		case name == "control.tar":
			tarReader = tar.NewReader(bytes.NewReader(memberData))
		case strings.HasSuffix(name, ".gz"):
			gzReader, err := gzip.NewReader(bytes.NewReader(memberData))
			if err != nil {
				return "", trace.Wrap(err, "decompressing %q", name)
			}
			defer gzReader.Close()
			tarReader = tar.NewReader(gzReader)
		default:
			return "", trace.BadParameter("control archive %q uses unsupported compression", name)
		}

		for {
			tarHeader, err := tarReader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", trace.Wrap(err, "reading %q", name)
			}

			if filepath.Base(tarHeader.Name) != "control" {
				continue
			}

			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tarReader); err != nil {
				return "", trace.Wrap(err, "reading control file")
			}
			return buf.String(), nil
		}
	}

	return "", trace.NotFound("no control file found")
}

// parseControl picks the identity fields out of a raw control stanza.
// Multi-line field bodies (e.g. Description) are ignored.
func parseControl(control string) *Package {
	pkg := &Package{}
	for _, line := range strings.Split(control, "\n") {
		switch {
		case strings.HasPrefix(line, "Package: "):
			pkg.Name = strings.TrimSpace(strings.TrimPrefix(line, "Package: "))
		case strings.HasPrefix(line, "Version: "):
			pkg.Version = strings.TrimSpace(strings.TrimPrefix(line, "Version: "))
		case strings.HasPrefix(line, "Architecture: "):
			pkg.Architecture = strings.TrimSpace(strings.TrimPrefix(line, "Architecture: "))
		}
	}

	return pkg
}
