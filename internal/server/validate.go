package server

import (
	stderrors "errors"
	"regexp"

	"taskboard/internal/domain/errors"
	"taskboard/internal/domain/models"

	"github.com/go-playground/validator"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var allowedTaskStatuses = map[string]bool{
	models.TaskStatusInProgress: true,
	models.TaskStatusDone:       true,
	models.TaskStatusPaused:     true,
	models.TaskStatusRevision:   true,
}

var allowedGroupStatuses = map[string]bool{
	models.GroupStatusActive: true,
}

var allowedGroupTaskStatuses = map[string]bool{
	models.GroupTaskPending:    true,
	models.GroupTaskInProgress: true,
	models.GroupTaskCompleted:  true,
}

// newValidator returns a validator that knows the simpleemail rule used by
// the request types.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

func validationErrorToErrorResponse(err error) error {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			case "Role", "NewRole":
				return errors.ErrInvalidRole
			case "Status":
				return errors.ErrInvalidStatus
			case "Name":
				return errors.ErrInvalidName
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			default:
				if verr.Tag() == "required" {
					return errors.ErrMissingFields
				}
			}
		}
	}
	return errors.ErrValidationFailed
}
