//go:build dlib

package dlib

import (
	goface "github.com/Kagami/go-face"
)

type goFaceEngine struct {
	rec *goface.Recognizer
}

func defaultFactory(modelsDir string) (Engine, error) {
	rec, err := goface.NewRecognizer(modelsDir)
	if err != nil {
		return nil, err
	}
	return &goFaceEngine{rec: rec}, nil
}

func (e *goFaceEngine) Recognize(jpegData []byte) ([]Face, error) {
	faces, err := e.rec.Recognize(jpegData)
	if err != nil {
		return nil, err
	}

	out := make([]Face, len(faces))
	for i, f := range faces {
		out[i] = Face{
			Rectangle:  f.Rectangle,
			Descriptor: f.Descriptor,
		}
	}
	return out, nil
}

func (e *goFaceEngine) Close() {
	e.rec.Close()
}
