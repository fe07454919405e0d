// Package storage defines the object store the async hand-off reads and writes.
package storage

import (
	"context"
	"regexp"
	"strings"

	"github.com/Laisky/errors/v2"
)

// ErrNotFound is returned by ObjectStore.Get when the object does not exist yet.
var ErrNotFound = errors.New("object not found")

// ObjectStore is a durable key-value object store.
type ObjectStore interface {
	Put(ctx context.Context, loc Location, body []byte) error
	// Get returns an error wrapping ErrNotFound when the object is absent.
	Get(ctx context.Context, loc Location) ([]byte, error)
}

// IsNotFound reports whether err means the object is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

const uriScheme = "s3://"

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Location addresses one object.
type Location struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ParseLocation parses "s3://bucket/key/with/slashes". The whole path after the
// bucket is the key.
func ParseLocation(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), uriScheme)
	if !ok {
		return Location{}, errors.Errorf("location %q must start with %s", uri, uriScheme)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		return Location{}, errors.Errorf("location %q has no object key", uri)
	}

	loc := Location{Bucket: bucket, Key: key}
	if err := loc.Validate(); err != nil {
		return Location{}, errors.Wrapf(err, "invalid location %q", uri)
	}
	return loc, nil
}

// Validate checks the bucket name and that the key is non-empty and relative.
func (l Location) Validate() error {
	if !bucketPattern.MatchString(l.Bucket) || strings.Contains(l.Bucket, "..") {
		return errors.Errorf("invalid bucket name %q", l.Bucket)
	}
	if l.Key == "" || strings.HasPrefix(l.Key, "/") {
		return errors.Errorf("invalid object key %q", l.Key)
	}
	for _, segment := range strings.Split(l.Key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return errors.Errorf("invalid object key %q", l.Key)
		}
	}
	return nil
}

func (l Location) String() string {
	return uriScheme + l.Bucket + "/" + l.Key
}
