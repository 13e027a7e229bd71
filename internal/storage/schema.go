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

//go:embed schema/project.schema.json
var projectSchemaJSON []byte

var (
	projectSchemaOnce sync.Once
	projectSchema     *gojsonschema.Schema
	projectSchemaErr  error
)

// ProjectSchema returns the JSON Schema of project files.
func ProjectSchema() []byte { return append([]byte(nil), projectSchemaJSON...) }

// ValidateProject checks raw project JSON against the embedded schema.
func ValidateProject(data []byte) error {
	projectSchemaOnce.Do(func() {
		projectSchema, projectSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(projectSchemaJSON))
	})
	if projectSchemaErr != nil {
		return fmt.Errorf("load project schema: %w", projectSchemaErr)
	}
	res, err := projectSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}
