package dispatch

import "io"

// RawBodyField is the reserved upload field name carrying a verbatim request
// body for raw mode.
const RawBodyField = "__raw_file__"

// Upload is one user-provided file stream.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// FileProvider looks up uploaded files by multipart field name.
type FileProvider interface {
	Open(field string) (*Upload, bool)
}

// UploadMap is a FileProvider backed by a plain map.
type UploadMap map[string]*Upload

func (m UploadMap) Open(field string) (*Upload, bool) {
	u, ok := m[field]
	if !ok || u == nil || u.Filename == "" {
		return nil, false
	}
	return u, true
}

// NoFiles is a FileProvider with no uploads.
var NoFiles FileProvider = UploadMap(nil)
