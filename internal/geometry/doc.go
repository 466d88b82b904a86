// Package geometry rectifies photographs of answer sheets into canonical
// images.
//
// A canonical image is a fixed-size, perspective-corrected raster (1600×2300
// by default) in which every bubble of a sheet layout sits at a known pixel
// position. Two entry points produce one:
//
//   - RectifyAutomatic finds the sheet outline itself. The photo is
//     downscaled to a working size, turned into an edge map and searched for
//     the largest convex four-cornered contour, trying the area thresholds
//     10%, 5% and 2% in order. The corners are scaled back and the ORIGINAL
//     image is warped, so detection resolution never limits output quality.
//   - RectifyManual uses four corners picked by a person, in any order.
//
// # Corner Ordering
//
// OrderPoints sorts corners by the sums and differences of their
// coordinates: top-left minimises x+y, bottom-right maximises it, top-right
// minimises y-x and bottom-left maximises it. Any permutation of the same
// four points gives the same result.
//
// # Warping
//
// The perspective transform is solved directly from the four point pairs and
// applied by inverse mapping with bilinear sampling. Pixels mapped outside
// the source are black.
package geometry
