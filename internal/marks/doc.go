// Package marks decides the answer to each question from candidate marks.
//
// A Detector reports bounding boxes of filled bubbles on a canonical image.
// Resolve snaps each box to the nearest template slot and reduces the marks
// of every question to a single decided answer:
//
//   - no mark: blank (no entry in the AnswerSet)
//   - one option marked: that option letter
//   - two or more options marked: Multi
//
// Ambiguity is never resolved by confidence. A physical double mark is
// always reported as Multi.
//
// Detections that cannot be placed, because they are far from every slot or
// land on a slot outside the question range, are dropped silently: some
// photographic noise is expected on every sheet.
package marks
