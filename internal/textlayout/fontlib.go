/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily is the family name the bundled Go Regular font is stored under.
const DefaultFamily = "Go"

// FontLibrary stores parsed OpenType fonts by family and caches sized faces.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[string]*opentype.Font
	faces sync.Map // faceKey -> font.Face
}

type faceKey struct {
	family string
	size   float64
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[string]*opentype.Font)} }

var (
	defaultLibOnce sync.Once
	defaultLib     *FontLibrary
)

// DefaultLibrary returns a shared library preloaded with Go Regular.
func DefaultLibrary() *FontLibrary {
	defaultLibOnce.Do(func() {
		defaultLib = NewFontLibrary()
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			defaultLib.fonts[DefaultFamily] = f
		}
	})
	return defaultLib
}

// LoadTTF loads a font file into the library under family.
func (fl *FontLibrary) LoadTTF(family, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fl.mu.Lock()
	fl.fonts[family] = f
	fl.mu.Unlock()
	return nil
}

func (fl *FontLibrary) find(family string) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if f, ok := fl.fonts[family]; ok {
		return f
	}
	return fl.fonts[DefaultFamily]
}

func (fl *FontLibrary) face(family string, size float64) (font.Face, error) {
	k := faceKey{family: family, size: size}
	if f, ok := fl.faces.Load(k); ok {
		return f.(font.Face), nil
	}
	otf := fl.find(family)
	if otf == nil {
		return nil, fmt.Errorf("no font for family %q", family)
	}
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	f, _ := fl.faces.LoadOrStore(k, face)
	return f.(font.Face), nil
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
type OTProvider struct {
	Lib      *FontLibrary
	Fallback Provider
}

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 12
	}
	lib := p.Lib
	if lib == nil {
		lib = DefaultLibrary()
	}
	if face, err := lib.face(spec.Family, spec.Size); err == nil {
		return face, metricsOf(face)
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}

// Default returns the provider used by the renderer and exporters.
func Default() Provider { return OTProvider{Lib: DefaultLibrary()} }
