// Package detection turns images into circles.
//
// Three strategies implement CircleDetector and are chosen explicitly by
// name (see NewDetector):
//
//   - DirectVoting: edges → accumulator → normalize → peaks → circles.
//   - GradientFiltered: the same chain with per-pixel gradient orientation
//     available to an optional gate that decides which edge pixels vote.
//   - PyramidRefined: contour circularity at several resolutions, merged
//     from coarse to fine. No accumulator is involved.
//
// # Coordinate System
//
// Accumulators and edge masks are indexed (row, col). Circles use image
// coordinates, so Center.X is the column and Center.Y the row. peakCenter is
// the only place that conversion happens.
//
// # Confidence Scores
//
// Confidence is a detection's votes relative to the strongest detection of
// the same run, so the best circle always scores 1.0. Scores are not
// comparable across runs or strategies.
//
// # Performance Considerations
//
// 3D voting costs O(E · maxRadius · ring size) and peak finding touches every
// accumulator cell, so limiting the radius range is the most effective knob.
// 2D voting is O(E²) in the number of edge pixels. Both can spread voting over
// several workers.
//
// # Limitations
//
// Detection is at whole-pixel precision. Thick outlines produce two rings of
// edges and usually two nearby peaks; MaxCircles and the neighbor window are
// the only suppression applied.
package detection
