// Package completion asks an LLM to turn a document into a single JSON
// object.
//
// Replies wrapped in markdown code fences are unwrapped; anything that is
// not exactly one JSON object fails with a malformed_response error whose
// message carries a preview of the reply, so the per-unit retry policy can
// try again and the failure log shows what the model said.
package completion
