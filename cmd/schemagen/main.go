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

// schemagen prints the JSON schema of the aptly-publish config file, or
// writes it to the path given as the first argument. Run via `go generate`.
package main

import (
	"fmt"
	"os"

	"github.com/schoolbox/release-tools/pkg/config"
)

func main() {
	schema, err := config.GetPublishJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build config schema: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) <= 1 {
		fmt.Println(string(schema))
		return
	}

	if err := os.WriteFile(os.Args[1], schema, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write config schema: %v\n", err)
		os.Exit(1)
	}
}
