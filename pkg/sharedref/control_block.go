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
	"fmt"

	"gvisor.dev/sharedref/pkg/atomicbitops"
	"gvisor.dev/sharedref/pkg/refs"
)

// payload releases the value managed by a control block. It is implemented
// by the block types that embed controlBlock.
type payload interface {
	// destroy runs the release action. It is called exactly once, when the
	// strong count drops to zero.
	destroy()

	// clear drops the block's reference to the value.
	clear()

	// deleter returns the custom deleter, or nil.
	deleter() any
}

// selfHolder is the embedded self reference of a managed value.
type selfHolder interface {
	deactivateSelf(cb *controlBlock)
}

// blockHook, if set, is called while a control block is being set up. Tests
// use it to make construction fail.
var blockHook func()

// controlBlock is the bookkeeping shared by all handles to one managed value.
//
// The weak count holds one extra reference on behalf of all strong
// references while the strong count is positive. The block is released on
// the single path where the weak count reaches zero.
type controlBlock struct {
	strong refs.Count
	weak   atomicbitops.Int64

	// impl is the block type embedding this controlBlock. Immutable.
	impl payload

	// self is the embedded self reference of the value, if activated.
	self selfHolder

	// stack is the creation stack, recorded in log-traces leak mode.
	stack []uintptr
}

// init initializes cb with one strong reference and registers it for leak
// checking. impl must embed cb.
func (cb *controlBlock) init(impl payload) {
	cb.strong.Init()
	cb.weak.Store(1)
	cb.impl = impl
	if refs.LogTracesEnabled() {
		cb.stack = refs.RecordStack()
	}
	if blockHook != nil {
		blockHook()
	}
	refs.Register(cb)
	blocksCreated.Increment()
}

// RefType implements refs.CheckedObject.RefType.
func (cb *controlBlock) RefType() string {
	return fmt.Sprintf("%T", cb.impl)
}

// LeakMessage implements refs.CheckedObject.LeakMessage.
func (cb *controlBlock) LeakMessage() string {
	msg := fmt.Sprintf("[%s %p] reference count of %d, weak count of %d instead of 0", cb.RefType(), cb, cb.strong.ReadRefs(), cb.weak.Load())
	if cb.stack != nil {
		msg += "\ncreated at:\n" + refs.FormatStack(cb.stack)
	}
	return msg
}

// LogRefs implements refs.CheckedObject.LogRefs.
func (cb *controlBlock) LogRefs() bool {
	return refs.LogTracesEnabled()
}

// useCount returns the current strong count.
func (cb *controlBlock) useCount() int64 {
	return cb.strong.ReadRefs()
}

// incStrong adds a strong reference. The caller must hold one.
func (cb *controlBlock) incStrong() {
	v := cb.strong.IncRef()
	refs.LogIncRef(cb, v)
}

// tryIncStrong adds a strong reference unless the value has been released.
func (cb *controlBlock) tryIncStrong() bool {
	v, ok := cb.strong.TryIncRef()
	if !ok {
		promotionsFailed.Increment()
		return false
	}
	refs.LogTryIncRef(cb, v)
	return true
}

// decStrong drops a strong reference, releasing the value if it was the
// last one.
func (cb *controlBlock) decStrong() {
	v := cb.strong.DecRef()
	refs.LogDecRef(cb, v)
	if v == 0 {
		cb.releasePayload()
		cb.decWeak()
	}
}

// incWeak adds a weak reference. The caller must hold a strong or weak
// reference.
func (cb *controlBlock) incWeak() {
	if v := cb.weak.Add(1); v <= 1 {
		panic(fmt.Sprintf("Incrementing non-positive weak count %p", cb))
	}
}

// decWeak drops a weak reference, releasing the block if it was the last
// reference of any kind.
func (cb *controlBlock) decWeak() {
	v := cb.weak.Add(-1)
	if v < 0 {
		panic(fmt.Sprintf("Decrementing non-positive weak count %p", cb))
	}
	if v == 0 {
		cb.releaseBlock()
	}
}

// releasePayload runs the release action of the value.
//
// Precondition: the strong count has just dropped to zero.
func (cb *controlBlock) releasePayload() {
	// The self reference lives inside the value and must be dropped while
	// the value's memory is still valid.
	if s := cb.self; s != nil {
		cb.self = nil
		s.deactivateSelf(cb)
	}
	cb.impl.destroy()
	cb.impl.clear()
	payloadsDestroyed.Increment()
}

// releaseBlock retires the block.
//
// Precondition: both counts are zero.
func (cb *controlBlock) releaseBlock() {
	refs.Unregister(cb)
	cb.stack = nil
	blocksReleased.Increment()
}
