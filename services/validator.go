package services

import (
	"fmt"
	"salon-sync/domain"
	"salon-sync/errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SendCommand is a message typed by the local participant.
type SendCommand struct {
	Room   domain.RoomID `validate:"gt=0"`
	Text   string        `validate:"max=2000"`
	Images [][]byte      `validate:"max=10,dive,min=1"`
}

// ValidateSend rejects a command before any network call: it needs a room and
// either some text or at least one image.
func ValidateSend(cmd SendCommand) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err)
	}
	if strings.TrimSpace(cmd.Text) == "" && len(cmd.Images) == 0 {
		return errors.ErrEmptyMessage
	}
	return nil
}
