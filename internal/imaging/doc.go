// Package imaging provides the raster operations the answer-sheet pipeline is
// built from: decoding photographs, downscaling, edge maps for sheet
// detection, margin cropping, encoding, and the review overlay drawn on top of
// a rectified sheet.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function is
// stateless and never mutates its input, so a decoded photograph may be shared
// between goroutines.
//
// # Edge Maps
//
// EdgeMap produces the binary image the sheet detector searches for contours:
//
//  1. Grayscale conversion (bild/effect)
//  2. Gaussian blur (bild/blur)
//  3. Canny edge detection (Sobel gradients, non-maximum suppression,
//     hysteresis)
//  4. Dilation then erosion (bild/effect) to bridge broken outlines
//  5. Binarisation (bild/segment)
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Files that cannot be opened or decoded
//   - Images with zero width or height
//   - Encoding errors during image output
package imaging
