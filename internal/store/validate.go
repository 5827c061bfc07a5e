package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/emilythestrangee/kaen/internal/models"
)

// MaxContentLength bounds a comment body in bytes.
const MaxContentLength = 10000

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
			panic(err)
		}
	})
	return validate
}

// ValidateNewComment checks a create payload at the collaborator boundary.
// A missing author maps to ErrAuth, anything else to ErrValidation.
func ValidateNewComment(in models.NewComment) error {
	if in.AuthorID <= 0 {
		return ErrAuth
	}
	if err := getValidator().Struct(in); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}
	return nil
}

// ValidateContent checks an edited body.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content must not be empty", ErrValidation)
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d bytes", ErrValidation, MaxContentLength)
	}
	return nil
}

// ValidateComment checks a record coming back from a backend before it is
// handed to the thread.
func ValidateComment(c models.Comment) error {
	switch {
	case c.ID <= 0:
		return fmt.Errorf("%w: comment without id", ErrValidation)
	case c.PostID <= 0:
		return fmt.Errorf("%w: comment %d without post", ErrValidation, c.ID)
	case c.ParentCommentID != nil && *c.ParentCommentID <= 0:
		return fmt.Errorf("%w: comment %d has invalid parent %d", ErrValidation, c.ID, *c.ParentCommentID)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}
