package delivery

import "github.com/h2non/filetype"

// DefaultExtension is used when a payload's signature is not recognized.
const DefaultExtension = ".mp4"

// GuessExtension returns the file extension matching the byte signature of
// data, with a leading dot.
func GuessExtension(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.Extension == "" {
		return DefaultExtension
	}
	return "." + kind.Extension
}

// GuessContentType returns the MIME type matching the byte signature of data.
func GuessContentType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "video/mp4"
	}
	return kind.MIME.Value
}

// isVideo reports whether data carries a video container signature.
func isVideo(data []byte) bool {
	return filetype.IsVideo(data)
}
