// Package generator assembles the extraction, retrieval, composition,
// validation, and repair components into the generation pipeline and exposes
// the service the HTTP API and CLI call into.
package generator
