/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewPageID returns a fresh page id.
func NewPageID() string { return "page-" + uuid.New().String() }

// NewProjectID returns a fresh project id.
func NewProjectID() string { return "project-" + uuid.New().String() }

// NowMillis is the default clock in unix milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }

// NewPage builds a page named "Page <index>" holding data.
func NewPage(index int, data string, now int64) Page {
	return Page{
		ID:        NewPageID(),
		Name:      fmt.Sprintf("Page %d", index),
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
