// Package imageinfo reads just enough of an uploaded image to decide whether
// it can be used as a profile picture.
package imageinfo

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/textproto"

	_ "golang.org/x/image/webp"
)

type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	WEBP Format = "webp"
)

var (
	ErrUnsupported = errors.New("unsupported image")
	ErrDimensions  = errors.New("image dimensions out of range")
)

// Info is what the header of an accepted image says about it.
type Info struct {
	Format Format
	Width  int
	Height int
}

func (i Info) MIME() string {
	return "image/" + string(i.Format)
}

// Limits bounds each side of an image, in pixels.
type Limits struct {
	MinSide int
	MaxSide int
}

var AvatarLimits = Limits{MinSide: 16, MaxSide: 4096}

func (l Limits) allow(width, height int) bool {
	return width >= l.MinSide && height >= l.MinSide &&
		width <= l.MaxSide && height <= l.MaxSide
}

// Inspect decodes only the image header. Markup formats such as SVG never
// decode and are reported as ErrUnsupported.
func Inspect(data []byte, limits Limits) (Info, error) {
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	info := Info{Format: Format(name), Width: cfg.Width, Height: cfg.Height}
	switch info.Format {
	case JPEG, PNG, GIF, WEBP:
	default:
		return Info{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}

	if !limits.allow(info.Width, info.Height) {
		return info, fmt.Errorf("%w: %dx%d", ErrDimensions, info.Width, info.Height)
	}
	return info, nil
}

// DeclaredType is the media type a multipart part claims to carry, without
// parameters. It is empty when the part does not say.
func DeclaredType(h textproto.MIMEHeader) string {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mediaType
}
