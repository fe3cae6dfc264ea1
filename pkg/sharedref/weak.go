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

// Weak is a weak handle: it observes a managed value without keeping it
// alive.
//
// A nil *Weak and a Weak with no control block are both empty. An empty
// Weak is expired.
type Weak[T any] struct {
	ptr T
	cb  *controlBlock
}

// NewWeak returns a weak handle observing r's value. An empty r yields an
// empty handle.
func NewWeak[T any](r *Ref[T]) *Weak[T] {
	if r.Empty() {
		return &Weak[T]{}
	}
	r.cb.incWeak()
	return &Weak[T]{ptr: r.ptr, cb: r.cb}
}

// Clone returns a new weak handle observing the same value as w.
func (w *Weak[T]) Clone() *Weak[T] {
	if w == nil || w.cb == nil {
		return &Weak[T]{}
	}
	w.cb.incWeak()
	return &Weak[T]{ptr: w.ptr, cb: w.cb}
}

// Move returns a new weak handle that takes over w's reference, leaving w
// empty.
func (w *Weak[T]) Move() *Weak[T] {
	if w == nil {
		return &Weak[T]{}
	}
	m := &Weak[T]{ptr: w.ptr, cb: w.cb}
	*w = Weak[T]{}
	return m
}

// Assign makes w observe o's value, releasing whatever w observed before.
func (w *Weak[T]) Assign(o *Weak[T]) {
	if o == nil || o.cb == nil {
		w.Reset()
		return
	}
	o.cb.incWeak()
	old := *w
	w.ptr, w.cb = o.ptr, o.cb
	old.release()
}

// AssignRef makes w observe r's value, releasing whatever w observed
// before.
func (w *Weak[T]) AssignRef(r *Ref[T]) {
	if r.Empty() {
		w.Reset()
		return
	}
	r.cb.incWeak()
	old := *w
	w.ptr, w.cb = r.ptr, r.cb
	old.release()
}

// Swap exchanges the contents of w and o.
func (w *Weak[T]) Swap(o *Weak[T]) {
	*w, *o = *o, *w
}

// Reset releases w's reference and leaves w empty.
func (w *Weak[T]) Reset() {
	if w == nil {
		return
	}
	old := *w
	*w = Weak[T]{}
	old.release()
}

func (w Weak[T]) release() {
	if w.cb != nil {
		w.cb.decWeak()
	}
}

// UseCount returns the number of strong handles to the observed value, or
// 0 if w is empty.
func (w *Weak[T]) UseCount() int64 {
	if w == nil || w.cb == nil {
		return 0
	}
	return w.cb.useCount()
}

// Expired returns true if the observed value has been released or w is
// empty.
func (w *Weak[T]) Expired() bool {
	return w.UseCount() == 0
}

// Lock returns a strong handle to the observed value, or an empty handle if
// the value has been released. A value being released concurrently is
// never handed out.
func (w *Weak[T]) Lock() *Ref[T] {
	if w == nil || w.cb == nil || !w.cb.tryIncStrong() {
		return &Ref[T]{}
	}
	return &Ref[T]{ptr: w.ptr, cb: w.cb}
}

// OwnerKey implements Owner.OwnerKey.
func (w *Weak[T]) OwnerKey() OwnerKey {
	if w == nil {
		return OwnerKey{}
	}
	return OwnerKey{cb: w.cb}
}

// OwnerBefore returns true if w's control block orders before o's.
func (w *Weak[T]) OwnerBefore(o Owner) bool {
	return OwnerBefore(w, o)
}
