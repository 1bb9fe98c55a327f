// Package hough implements the voting half of the circle detector: building
// an accumulator from edge pixels, normalizing it, and extracting peaks.
//
// # Accumulators
//
// Two voting schemes share one grid type:
//
//   - DistanceVoter fills a (row, col) grid. Every edge pixel votes at each
//     other edge pixel within a maximum distance. This measures how much edge
//     evidence sits nearby and is O(E²) in the number of edge pixels.
//
//   - HoughVoter fills a (row, col, radius) grid. Every edge pixel votes for
//     each center that would place it on a circle of radius r. The cost is
//     O(E · maxRadius · ring size).
//
// Both may split the edge pixels across workers. Each worker votes into a
// private grid and the grids are summed afterwards, so the result does not
// depend on the worker count.
//
// # Peaks
//
// A cell is a peak when no other cell in its window holds a strictly greater
// value. Windows near the border are shifted inward rather than cut, so a
// corner cell is compared against as many neighbors as an interior one.
package hough
