// Package storage defines the upload sink a finished artifact is handed to.
package storage

import "context"

// Sink receives a finished local artifact. A failed Upload never affects the
// local file.
type Sink interface {
	Name() string
	Upload(ctx context.Context, path, name string) error
}
