package service

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/SergeiKhy/url-service/internal/apperr"
)

const (
	slugCharset   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxSlugLength = 255
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// SlugGenerator produces candidate slugs for short URLs created without one.
// Implementations must be safe for concurrent use.
type SlugGenerator interface {
	Generate(length int) (string, error)
}

type randomSlugGenerator struct{}

// NewRandomSlugGenerator returns a generator drawing base62 characters from
// crypto/rand.
func NewRandomSlugGenerator() SlugGenerator {
	return randomSlugGenerator{}
}

func (randomSlugGenerator) Generate(length int) (string, error) {
	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(slugCharset))))
		if err != nil {
			return "", err
		}
		result[i] = slugCharset[num.Int64()]
	}
	return string(result), nil
}

func validateSlug(slug string) error {
	if len(slug) > maxSlugLength {
		return apperr.New(apperr.CodeInvalid, "Slug must be at most %d characters long.", maxSlugLength)
	}
	if !slugPattern.MatchString(slug) {
		return apperr.New(apperr.CodeInvalid, "Slug %q may contain only letters, digits, dots, dashes and underscores.", slug)
	}
	return nil
}
