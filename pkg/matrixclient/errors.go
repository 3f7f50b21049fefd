package matrixclient

import (
	"fmt"
)

type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"errcode"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("matrix api error (%d): %s", e.Status, e.Message)
}
