// Package optimization implements the final pipeline stage: choosing a
// visual style for a drafted deck and rendering the finished artifact.
package optimization
