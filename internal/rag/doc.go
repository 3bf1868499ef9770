// Package rag defines the retrieval contracts used by the knowledge base
// stage: turning a question into an embedding and looking up the nearest
// solved problems in a vector index.
package rag
