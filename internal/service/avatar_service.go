package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog"

	"campusportal/internal/ids"
	"campusportal/internal/media/imageinfo"
	"campusportal/internal/repository"
)

const MaxAvatarBytes = 2 << 20

var (
	errAvatarMissing  = newError(ErrValidation, "Avatar file is required")
	errAvatarTooLarge = newError(ErrValidation, "Avatar must be 2 MB or smaller")
	errAvatarType     = newError(ErrValidation, "Avatar must be a JPEG, PNG, GIF or WEBP image")
	errAvatarSize     = newError(ErrValidation, fmt.Sprintf("Avatar must be %d to %d pixels on each side", imageinfo.AvatarLimits.MinSide, imageinfo.AvatarLimits.MaxSide))
	errAvatarMismatch = newError(ErrValidation, "Declared content type does not match the file")
)

// AvatarStore writes avatar objects and reports the URL they are served from.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type AvatarInput struct {
	RollNo   string
	File     io.Reader
	Size     int64
	Declared string
}

type AvatarService struct {
	students StudentStore
	store    AvatarStore
	log      zerolog.Logger
}

func NewAvatarService(students StudentStore, store AvatarStore, log zerolog.Logger) *AvatarService {
	return &AvatarService{students: students, store: store, log: log}
}

// Upload checks the image header, stores the file under a fresh key and
// points the student's avatar at it.
func (s *AvatarService) Upload(ctx context.Context, input AvatarInput) (string, error) {
	if input.File == nil || input.Size == 0 {
		return "", errAvatarMissing
	}
	if input.Size > MaxAvatarBytes {
		return "", errAvatarTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(input.File, MaxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return "", errAvatarMissing
	}
	if len(data) > MaxAvatarBytes {
		return "", errAvatarTooLarge
	}

	info, err := imageinfo.Inspect(data, imageinfo.AvatarLimits)
	switch {
	case errors.Is(err, imageinfo.ErrUnsupported):
		return "", errAvatarType
	case errors.Is(err, imageinfo.ErrDimensions):
		return "", errAvatarSize
	case err != nil:
		return "", err
	}
	if input.Declared != "" && input.Declared != "application/octet-stream" && input.Declared != info.MIME() {
		return "", errAvatarMismatch
	}

	key := path.Join("avatars", input.RollNo, fmt.Sprintf("%s.%s", ids.New(), info.Format))
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), info.MIME())
	if err != nil {
		return "", err
	}

	if err := s.students.UpdateAvatar(ctx, input.RollNo, url); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return "", errStudentNotFound
		}
		return "", err
	}

	s.log.Info().
		Str("roll_no", input.RollNo).
		Str("key", key).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("avatar updated")
	return url, nil
}
