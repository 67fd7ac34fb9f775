// Copyright ©2021 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool provides size-classed byte buffers for record decoding.
package pool

import (
	"math/bits"
	"sync"
)

// classes holds one pool per power of two capacity.
var classes [63]sync.Pool

func init() {
	for i := range classes {
		n := 1 << uint(i)
		classes[i].New = func() interface{} {
			return make([]byte, n)
		}
	}
}

// Get returns a []byte of length size. Buffers from the pool's own
// allocations have a capacity less than 2*size.
func Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	return classes[class(size)].Get().([]byte)[:size]
}

// Put returns buf to its size class. Buffers not obtained from Get are
// filed under the largest class their capacity fills.
func Put(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}
	i := bits.Len(uint(c)) - 1
	classes[i].Put(buf[:1<<uint(i)])
}

// class returns the ceiling of the base 2 log of size.
func class(size int) int {
	return bits.Len(uint(size - 1))
}
