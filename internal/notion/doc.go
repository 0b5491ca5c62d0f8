// Package notion defines the records mirrored from a Notion workspace.
//
// Four entity kinds are mirrored:
//   - Block: a content node with a parent, a sibling index and a typed payload
//   - Page: a container with typed properties
//   - Database: a page-like container whose children are rows (pages)
//   - Comment: a leaf attached to a page or block discussion
//
// Records are only ever produced by the strict decoders in decode.go. A decoder
// either returns a fully populated record or an error; partial records never
// escape this package. Structured sub-objects (properties, rich text, block
// payloads, icons, covers) are kept as raw JSON and stored opaquely.
//
// This package imports nothing internal. The engine, the HTTP client and the
// store all depend on it.
package notion
