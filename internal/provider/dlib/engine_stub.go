//go:build !dlib

package dlib

func defaultFactory(string) (Engine, error) {
	return nil, ErrNotCompiled
}
