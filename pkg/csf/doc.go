// Package csf models story files: story identity (ids, names, export
// filtering), the annotation types a story file declares, and the Registry
// that the preview imports story files from.
package csf
