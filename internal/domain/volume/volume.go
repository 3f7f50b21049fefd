package volume

import "errors"

var ErrInvalidBinding = errors.New("invalid volume binding")

// Binding is a durable, named storage resource. It is provisioned out of
// band, outlives any number of instance replacements, and is never created
// or destroyed by the redeploy flow. At most one running instance may hold
// a read-write claim on it at any time: it backs a filesystem database that
// cannot survive two concurrent writers.
type Binding struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Validate checks the binding identifies a concrete placement.
func (b Binding) Validate() error {
	if b.Name == "" || b.Region == "" {
		return ErrInvalidBinding
	}
	return nil
}
