package service

import (
	"io"

	"github.com/rs/zerolog"

	"campusportal/internal/service/servicetest"
)

var (
	testLog    = zerolog.New(io.Discard)
	testHasher = servicetest.Hasher
)
