// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sharedref

import (
	"gvisor.dev/sharedref/pkg/metric"
)

var (
	blocksCreated     = metric.MustCreateNewUint64Metric("sharedref_blocks_created", true, "Number of control blocks created.")
	blocksReleased    = metric.MustCreateNewUint64Metric("sharedref_blocks_released", true, "Number of control blocks released after both counts reached zero.")
	payloadsDestroyed = metric.MustCreateNewUint64Metric("sharedref_payloads_destroyed", true, "Number of managed values released.")
	promotionsFailed  = metric.MustCreateNewUint64Metric("sharedref_promotions_failed", true, "Number of weak handles that failed to lock because the value was released.")
	badWeakRefs       = metric.MustCreateNewUint64Metric("sharedref_bad_weak_refs", true, "Number of FromWeak calls that returned ErrBadWeakRef.")
)

func init() {
	metric.MustRegisterCustomUint64Metric("sharedref_blocks_live", false, "Number of control blocks not yet released.", func() uint64 {
		released := blocksReleased.Value()
		return blocksCreated.Value() - released
	})
}
