// Package extraction implements the first pipeline stage: turning a
// submitted document into structured content through the chunk plan and the
// language-model capability.
package extraction
