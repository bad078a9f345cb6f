package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	IsImage     bool
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// supportedImages are the raster formats the print layout can decode.
var supportedImages = map[string]string{
	"image/png":  "PNG image",
	"image/jpeg": "JPEG image",
	"image/gif":  "GIF image",
}

// Detect detects the actual file type using magic bytes, not filename
func (d *Detector) Detect(filePath string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := d.classify(mtype)
	d.logMismatch(filePath, info)
	return info, nil
}

// DetectBytes sniffs an in-memory payload.
func (d *Detector) DetectBytes(data []byte) *FileTypeInfo {
	return d.classify(mimetype.Detect(data))
}

func (d *Detector) classify(mtype *mimetype.MIME) *FileTypeInfo {
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsImage:   strings.HasPrefix(mtype.String(), "image/"),
	}

	// parameters such as charset never apply to images, compare the bare type
	for m, desc := range supportedImages {
		if mtype.Is(m) {
			info.MIMEType = m
			info.Supported = true
			info.Description = desc
			return info
		}
	}
	if info.IsImage {
		info.Description = fmt.Sprintf("Unsupported image type: %s", info.MIMEType)
	} else {
		info.Description = fmt.Sprintf("Not an image: %s", info.MIMEType)
	}
	return info
}

// logMismatch notes files whose extension disagrees with their content; decoding
// goes by content so such files are still printed.
func (d *Detector) logMismatch(filePath string, info *FileTypeInfo) {
	if !info.Supported {
		return
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if ext != info.Extension {
		log.Debug().Str("file", filePath).Str("ext", ext).Str("mime", info.MIMEType).Msg("extension does not match content")
	}
}

// IsSupportedImage checks that the file content is a PNG, JPEG or GIF image.
func (d *Detector) IsSupportedImage(filePath string) (bool, error) {
	info, err := d.Detect(filePath)
	if err != nil {
		return false, err
	}
	return info.Supported, nil
}
