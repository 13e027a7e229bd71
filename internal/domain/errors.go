/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "errors"

// User-facing failures. Messages are shown as-is by the clients.
var (
	ErrEmptyProjectName      = errors.New("please enter a project name")
	ErrNoProject             = errors.New("no project to save")
	ErrNoCanvas              = errors.New("no canvas found")
	ErrLastPage              = errors.New("cannot delete the last page")
	ErrPageNotFound          = errors.New("page not found")
	ErrMalformedProject      = errors.New("failed to load project")
	ErrUnsupportedFileType   = errors.New("unsupported file type")
	ErrImportNotSupportedYet = errors.New("import of this document type is coming soon")
	ErrImageTooLarge         = errors.New("image is too large to import")
	ErrLoadInProgress        = errors.New("a project load is already in progress")
	ErrUnknownTool           = errors.New("unknown tool")
)
