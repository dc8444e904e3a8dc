package merkle

import (
	"runtime"
	"sync"
)

// parallelLeafThreshold is the leaf count above which leaf hashing is spread
// across goroutines. Below it the goroutine overhead outweighs the hashing.
const parallelLeafThreshold = 1024

// hashLeaves fills level 0 of the arena with leaf digests. Each arena slot
// is fixed by the leaf index, so parallel execution cannot reorder the
// index-to-digest mapping.
func (mt *MerkleTree) hashLeaves() {
	leaves := mt.levels[0]

	if leaves.count < parallelLeafThreshold {
		for i := 0; i < leaves.count; i++ {
			copy(mt.arena[i*mt.digestSize:], mt.hasher.HashLeaf(mt.blocks[i]))
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (leaves.count + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > leaves.count {
			end = leaves.count
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				copy(mt.arena[i*mt.digestSize:], mt.hasher.HashLeaf(mt.blocks[i]))
			}
		}(start, end)
	}
	wg.Wait()
}
