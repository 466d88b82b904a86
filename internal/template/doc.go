// Package template loads answer-sheet layouts.
//
// A layout is a JSON file mapping slot IDs to bubble centres in canonical
// image coordinates:
//
//	{"1": {"x": 180, "y": 600}, "2": {"x": 250, "y": 600}, ...}
//
// Slots are assigned to questions in ascending ID order, options A to E
// first: slot IDs sorted numerically give 1A, 1B, 1C, 1D, 1E, 2A and so on.
// A layout declares its question count; extra slots are ignored and missing
// slots are a load error.
//
// The 60 and 80 question layouts are embedded in the binary. A directory of
// replacement files can be used instead via NewDirRegistry.
package template
