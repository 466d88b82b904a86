// Package detector provides mark detectors for canonical answer-sheet
// images.
//
// Two implementations of marks.Detector are available:
//
//   - WebSocket forwards the image to an external model server and returns
//     its boxes. The server receives one JSON text frame
//
//     {"conf": 0.1, "width": 1600, "height": 2300, "image": "<base64 PNG>"}
//
//     and answers with
//
//     {"boxes": [[x1, y1, x2, y2, conf], ...], "error": ""}
//
//   - Blob finds solid dark blobs locally, for setups without a model.
//
// Detectors are expensive to set up and safe for concurrent use, so a
// process keeps one per configuration in a Shared set.
package detector
