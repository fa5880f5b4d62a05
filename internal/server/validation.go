package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode"

	"whosetune/internal/spotify"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxDisplayNameLength = 32
	maxHandleLength      = 100
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
			_, err := validateDisplayName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("playlisturl", func(fl validator.FieldLevel) bool {
			_, ok := spotify.ExtractPlaylistID(fl.Field().String())
			return ok
		})
	})
}

func bindJSON(c *gin.Context, req any, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, fallback)})
		return false
	}
	return true
}

func resolveBindError(err error, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && fallback != "" {
		return fallback
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}

func validateDisplayName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("display name is required")
	}
	if len(trimmed) > maxDisplayNameLength {
		return "", fmt.Errorf("display name must be %d characters or fewer", maxDisplayNameLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("display name contains unsupported characters")
	}
	return trimmed, nil
}

func validateHandle(handle string) (string, error) {
	trimmed := strings.TrimSpace(handle)
	if trimmed == "" {
		return "", errors.New("contributor handle is required")
	}
	if len(trimmed) > maxHandleLength {
		return "", fmt.Errorf("contributor handle must be %d characters or fewer", maxHandleLength)
	}
	return trimmed, nil
}

func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
