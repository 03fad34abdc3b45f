// Package chunker splits text into overlapping, word-bounded windows.
package chunker
