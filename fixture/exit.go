package fixture

import "fmt"

// ExitError is returned when the remote session ended with a non-zero exit
// status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("session exited with status %d", e.Code)
}

// exitErr returns nil for a zero exit status.
func exitErr(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}
