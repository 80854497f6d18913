// Package credstore keeps small string values, such as the API session
// token, in local persistent storage.
package credstore

import "context"

// TokenKey is the key the session token is stored under.
const TokenKey = "userToken"

// Getter reads one value. A missing value is reported with ok == false and a
// nil error; err is reserved for storage that could not be read.
type Getter interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// Store is a Getter that can also write.
type Store interface {
	Getter
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// GetterFunc adapts a function to Getter.
type GetterFunc func(ctx context.Context, key string) (string, bool, error)

func (f GetterFunc) Get(ctx context.Context, key string) (string, bool, error) {
	return f(ctx, key)
}

// Static returns a Getter serving fixed values.
func Static(values map[string]string) Getter {
	return GetterFunc(func(_ context.Context, key string) (string, bool, error) {
		v, ok := values[key]
		return v, ok, nil
	})
}
