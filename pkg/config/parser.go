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

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kaptinlin/jsonschema"
)

// ParsePublishConfigFile loads the config file into a new config struct and
// returns it. The file contents are validated against the JSON schema
// derived from [Publish]. A missing file yields the defaults; "-" reads
// from stdin.
func ParsePublishConfigFile(configFilePath string) (*Publish, error) {
	configFileAsJSON, err := loadFileAsJSON(configFilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config contents: %w", err)
	}

	if err := validatePublishConfig(configFileAsJSON); err != nil {
		return nil, err
	}

	config := &Publish{}
	schema := getPublishSchema()
	if err := schema.Unmarshal(config, configFileAsJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

// GetPublishJSONSchema returns the JSON schema for the config struct.
func GetPublishJSONSchema() ([]byte, error) {
	schema := getPublishSchema()
	schemaBytes, err := json.MarshalIndent(schema, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON schema: %w", err)
	}

	return schemaBytes, nil
}

func loadFileAsJSON(configFilePath string) ([]byte, error) {
	var configFileContents []byte
	if configFilePath == "-" {
		var err error
		configFileContents, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read config from stdin: %w", err)
		}
	} else {
		var err error
		configFileContents, err = os.ReadFile(configFilePath)
		if err != nil {
			return nil, err
		}
	}

	configFileAsJSON, err := yaml.YAMLToJSON(configFileContents)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config file to JSON: %w", err)
	}

	return configFileAsJSON, nil
}

func getPublishSchema() *jsonschema.Schema {
	opts := jsonschema.DefaultStructTagOptions()
	opts.AllowUntaggedFields = true
	return jsonschema.FromStructWithOptions[Publish](opts)
}

// validatePublishConfig checks the provided config file contents against the
// JSON schema for [Publish] config and reports every violation in one error.
func validatePublishConfig(configFileAsJSON []byte) error {
	schema := getPublishSchema()
	res := schema.ValidateJSON(configFileAsJSON)
	if res == nil || res.IsValid() {
		return nil
	}

	problems := make([]string, 0, len(res.Errors))
	for field, err := range res.Errors {
		problems = append(problems, fmt.Sprintf("%s: %s", field, err.Error()))
	}

	return fmt.Errorf("config is invalid: %s", strings.Join(problems, "; "))
}
