// Package media defines the core types, capability interfaces, and pure
// policies shared by the clipdl download pipeline: URL classification, audio
// format selection, and the tag set written into finished files.
package media
