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
	"unsafe"
)

// OwnerKey identifies a control block. Handles sharing a control block have
// equal keys regardless of the address they observe. The zero OwnerKey
// belongs to empty handles.
//
// OwnerKey is comparable and may be used as a map key.
type OwnerKey struct {
	cb *controlBlock
}

// Less orders keys by control block identity. Empty handles order first.
func (k OwnerKey) Less(o OwnerKey) bool {
	return uintptr(unsafe.Pointer(k.cb)) < uintptr(unsafe.Pointer(o.cb))
}

// IsZero returns true for the key of an empty handle.
func (k OwnerKey) IsZero() bool {
	return k.cb == nil
}

// Owner is implemented by both strong and weak handles of any type.
type Owner interface {
	OwnerKey() OwnerKey
}

// OwnerBefore is a strict weak ordering over handles by control block
// identity. Handles that share a control block are equivalent under it.
func OwnerBefore(a, b Owner) bool {
	return a.OwnerKey().Less(b.OwnerKey())
}

// OwnerEqual returns true if a and b share a control block, or are both
// empty.
func OwnerEqual(a, b Owner) bool {
	return a.OwnerKey() == b.OwnerKey()
}
