// Package chunking turns a document into a deterministic sampled chunk plan.
//
// Small documents become a single chunk covering everything. Larger ones are
// sampled by a format-aware strategy: structured formats keep their leading
// and trailing sections and evenly spaced sections from the middle, flat
// text keeps byte windows from both ends and the interior. Each chunk
// carries a role tag so downstream stages can tell authoritative content
// from samples. The parameters that shaped a plan travel with it, which
// makes retried extractions reproducible after configuration changes.
package chunking
