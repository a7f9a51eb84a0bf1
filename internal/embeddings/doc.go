// Package embeddings turns problem text into vectors for the knowledge base.
//
// Three providers are available: fastembed (local ONNX, requires cgo),
// tei (a Text Embeddings Inference server) and openai (any OpenAI-compatible
// /embeddings endpoint via langchaingo). NewProvider selects one at runtime.
package embeddings
