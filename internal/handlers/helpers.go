package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/middleware"
	"github.com/example/verdant/internal/utils"
)

// parseBody decodes the request body into req and runs its validate tags.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperror.NewValidationError("invalid request body")
	}
	if err := utils.Validate(req); err != nil {
		return apperror.NewValidationError(err.Error())
	}
	return nil
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return uuid.Nil, apperror.NewUnauthorizedError("Authentication credentials were not provided.")
	}
	return id, nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.NewValidationError("invalid " + name)
	}
	return id, nil
}

// optionalUpload stores the multipart file named field, if the request has one.
// It returns the stored relative path or "" when no file was sent.
func optionalUpload(c *fiber.Ctx, field, mediaRoot, dir string) (string, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", nil
	}
	rel, err := utils.SaveUpload(c, file, mediaRoot, dir)
	if errors.Is(err, utils.ErrUnsupportedFileType) {
		return "", apperror.NewValidationError(err.Error())
	}
	if err != nil {
		return "", apperror.NewInternalError("failed to store upload", err)
	}
	return rel, nil
}
