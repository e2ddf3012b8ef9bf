package respbuild

import "strings"

// extensionContentTypes mirrors original_source's Response::_detect_content_type:
// an extension-based lookup table, not a content-sniffing one.
var extensionContentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
}

const defaultContentType = "application/octet-stream"

func detectContentType(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return defaultContentType
	}
	if ct, ok := extensionContentTypes[strings.ToLower(path[dot:])]; ok {
		return ct
	}
	return defaultContentType
}
