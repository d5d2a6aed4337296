// Package embeddings turns text into fixed-dimension vectors.
//
// A Provider talks to one embedding model (an OpenAI-compatible API, a
// Text Embeddings Inference server, or a local FastEmbed ONNX model). The
// Generator sits on top of a Provider and owns batching, rate limiting,
// dimension checks and metrics. Callers in the ingestion and retrieval
// pipelines only ever use the Generator.
package embeddings
