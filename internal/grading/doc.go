// Package grading scores decided answers against an answer key.
package grading
