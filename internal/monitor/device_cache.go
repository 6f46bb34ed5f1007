/*
SPDX-FileCopyrightText: Copyright (c) 2026 NVIDIA CORPORATION & AFFILIATES. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package monitor

import (
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultDeviceCacheSize = 64

// DeviceKey identifies an RDMA device on one host of one role.
type DeviceKey struct {
	Role   string
	Host   string
	Device string
}

// DeviceCache maps RDMA devices to their network interface names for the
// duration of a run. Entries never expire; a run's hosts do not change.
type DeviceCache struct {
	cache *expirable.LRU[DeviceKey, string]
}

// NewDeviceCache creates a cache holding up to maxSize entries. A
// non-positive maxSize selects the default.
func NewDeviceCache(maxSize int) *DeviceCache {
	if maxSize <= 0 {
		maxSize = defaultDeviceCacheSize
	}
	return &DeviceCache{cache: expirable.NewLRU[DeviceKey, string](maxSize, nil, 0)}
}

// Get returns the cached interface name for key.
func (c *DeviceCache) Get(key DeviceKey) (string, bool) {
	return c.cache.Get(key)
}

// Set stores the interface name for key.
func (c *DeviceCache) Set(key DeviceKey, iface string) {
	c.cache.Add(key, iface)
}

// Len returns the number of cached devices.
func (c *DeviceCache) Len() int {
	return c.cache.Len()
}
