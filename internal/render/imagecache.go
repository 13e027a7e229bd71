/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"container/list"
	"crypto/sha1"
	"image"
	"sync"
)

// DefaultImageCacheBytes bounds the decoded images kept between renders.
const DefaultImageCacheBytes = 128 << 20

// imageCache keeps decoded data-URL images keyed by a hash of the source,
// evicting least recently used entries once their pixel bytes exceed capBytes.
type imageCache struct {
	mu       sync.Mutex
	capBytes int64
	size     int64
	ll       *list.List // front = most recently used
	items    map[[sha1.Size]byte]*list.Element
}

type cachedImage struct {
	key  [sha1.Size]byte
	img  image.Image
	size int64
}

func newImageCache(capBytes int64) *imageCache {
	return &imageCache{capBytes: capBytes, ll: list.New(), items: make(map[[sha1.Size]byte]*list.Element)}
}

var images = newImageCache(DefaultImageCacheBytes)

func (c *imageCache) get(key [sha1.Size]byte) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cachedImage).img, true
}

func (c *imageCache) put(key [sha1.Size]byte, img image.Image) {
	n := pixelBytes(img)
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.capBytes {
		return
	}
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&cachedImage{key: key, img: img, size: n})
	c.size += n
	for c.size > c.capBytes {
		c.removeOldest()
	}
}

func (c *imageCache) removeOldest() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	e := c.ll.Remove(el).(*cachedImage)
	delete(c.items, e.key)
	c.size -= e.size
}

func (c *imageCache) stats() (entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len(), c.size
}

// pixelBytes estimates the memory held by a decoded image at 4 bytes per pixel.
func pixelBytes(img image.Image) int64 {
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}

func decodeCached(src string) (image.Image, bool) {
	key := sha1.Sum([]byte(src))
	if img, ok := images.get(key); ok {
		return img, true
	}
	img, _, err := DecodeDataURL(src)
	if err != nil {
		return nil, false
	}
	images.put(key, img)
	return img, true
}
