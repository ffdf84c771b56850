// Package inference talks to the external live-caption engine over HTTP.
//
// The engine hosts the model, tokenizer, and generation loop; this client
// only submits prompts with video boundaries and decodes the returned
// caption fragments. Transient HTTP failures are retried with bounded
// exponential backoff honouring Retry-After.
package inference
