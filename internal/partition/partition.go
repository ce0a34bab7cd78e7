// Package partition splits an aggregate amount (connections, target
// rate, ...) evenly across a number of parts, with any remainder
// falling to later parts.
//
// Grounded on original_source/src/partition.hpp's partitioner: each
// call takes amount/parts (integer division), then reduces parts by
// one and amount by the share just taken. Because the division floors,
// shares handed out while more parts remain tend to be smaller, and
// the remainder accumulates into the last parts taken.
package partition

// Split divides amount across parts shares, remainder-last.
func Split(amount, parts int) []int {
	if parts <= 0 {
		return nil
	}
	shares := make([]int, parts)
	remaining := amount
	left := parts
	for i := 0; i < parts; i++ {
		share := remaining / left
		shares[i] = share
		remaining -= share
		left--
	}
	return shares
}
