// Package ocr reads the printed or handwritten header of an answer sheet
// using Tesseract.
//
// The header is a rectangle of the canonical image declared by the sheet
// layout, usually the student ID box. Reader crops that rectangle, converts
// it to grayscale, enlarges small crops and hands the result to Tesseract
// through gosseract/v2.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-default data directory can be set with Reader.TessdataPrefix.
//
// # Concurrency
//
// A gosseract client is not safe for concurrent use, so every Read creates
// and closes its own client. Reader itself holds only settings and may be
// shared.
package ocr
