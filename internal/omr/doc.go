// Package omr runs the full grading pipeline for one answer-sheet photo.
//
// A run rectifies the photo to the canonical sheet size, asks the mark
// detector for filled bubbles, resolves them to one answer per question and
// grades the answers against the request's key or the layout's default
// key. When the layout declares a header region and a HeaderReader is
// configured, the header text is read as well.
//
// Runs are synchronous and independent. The only state shared between them
// is the template registry and the detector, both safe for concurrent use.
// Failures are reported as *Error values carrying an ErrorKind.
package omr
