// Package embedding adapts an ai.Embedder to provider batch limits.
//
// Batcher splits requests into sub-batches (ten texts by default), retries
// each sub-batch with exponential backoff, checks that the provider returned
// one vector per text, and L2-normalizes the results so downstream cosine
// scoring can use a plain dot product.
package embedding
