package hlsplaylist

import (
	"path"
	"strings"
)

// StableURI canonicalizes an upstream segment URI into the stable key used
// throughout the pipeline: strip any leading "./" or "../" prefixes (a
// "../" later in the path is kept as is), replace
// the extension with ".ts", and prepend "/". The function is idempotent.
func StableURI(uri string) string {
	trimmed := uri
	for strings.HasPrefix(trimmed, "../") || strings.HasPrefix(trimmed, "./") {
		trimmed = strings.TrimPrefix(trimmed, "../")
		trimmed = strings.TrimPrefix(trimmed, "./")
	}
	ext := path.Ext(trimmed)
	base := strings.TrimSuffix(trimmed, ext)
	return "/" + strings.TrimPrefix(base, "/") + ".ts"
}

// SidecarURI derives the single-track WebVTT sidecar key for a stable
// segment URI (".ts" -> ".vtt").
func SidecarURI(stableURI string) string {
	return strings.TrimSuffix(stableURI, ".ts") + ".vtt"
}

// SidecarURITagged derives the dual-track WebVTT sidecar key for a stable
// segment URI, tagged "orig" or "trans" (".ts" -> ".orig.vtt"/".trans.vtt").
func SidecarURITagged(stableURI, tag string) string {
	return strings.TrimSuffix(stableURI, ".ts") + "." + tag + ".vtt"
}

// PublishedURI returns the path a rewritten media playlist should reference
// for a stable URI: the stable URI with its leading slash stripped, so HLS
// clients resolve it relative to the server root.
func PublishedURI(stableURI string) string {
	return strings.TrimPrefix(stableURI, "/")
}
