// Package documents is the storage boundary for submitted documents and
// rendered artifacts: read a document by reference, write an artifact, and
// derive format and title from what was submitted.
package documents
