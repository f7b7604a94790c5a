/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed bundle.schema.json
var bundleSchemaJSON []byte

// BundleSchema returns the JSON schema bundle.json must conform to.
func BundleSchema() []byte { return append([]byte(nil), bundleSchemaJSON...) }

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(bundleSchemaJSON))
	})
	return schema, schemaErr
}

// ValidationError lists every schema violation of a bundle.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "bundle does not conform to schema: " + strings.Join(e.Problems, "; ")
}

// ValidateBundle checks bundle JSON against the embedded schema.
func ValidateBundle(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("load bundle schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate bundle: %w", err)
	}
	if res.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, e := range res.Errors() {
		verr.Problems = append(verr.Problems, e.String())
	}
	return verr
}
