// Package detection finds the outline of a paper sheet in an edge image.
//
// The search works on a binary edge map (see imaging.EdgeMap) and follows
// the classic document-scanner approach:
//
//  1. Labelling: foreground pixels are grouped into 8-connected components
//     with an iterative flood fill. Components reachable from the image
//     border through background are external; components nested inside a
//     hole of another component are ignored.
//  2. Tracing: the outer boundary of each external component is traced with
//     Moore-neighbour tracing, producing a closed contour.
//  3. Simplification: each contour is reduced with Douglas-Peucker using a
//     tolerance proportional to its perimeter.
//  4. Selection: contours are visited by descending area for each area
//     threshold in turn; the first convex four-vertex polygon above the
//     threshold wins.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Limitations
//
// The search is exact for clean outlines. Heavily cluttered backgrounds can
// merge the sheet border with other edges into a single component, in which
// case no four-vertex polygon is found and callers should fall back to
// manual corner selection.
package detection
