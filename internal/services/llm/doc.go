// Package llm provides the chat completion capability the pipeline stages
// invoke. The client speaks any OpenAI-compatible endpoint, requests
// JSON-only responses, and issues exactly one provider call per invocation;
// it exposes Marker to fold client failures into the shared error taxonomy
// so the workflow manager alone decides retryability and backoff.
package llm
