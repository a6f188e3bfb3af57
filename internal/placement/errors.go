package placement

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInsufficientBalance rejects an order before placement when the cached
// account balance cannot fund it.
var ErrInsufficientBalance = errors.New("placement: insufficient balance")

// ValidationError rejects an order before any network call. Never retried.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("placement: validation failed: %s", strings.Join(e.Reasons, "; "))
}

// IsValidation reports whether err is a pre-placement validation rejection.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
