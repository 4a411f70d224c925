package extract

import (
	"errors"
	"os"

	errs "enricher/pkg/errors"
	"enricher/pkg/storage"
)

// LoadURLs reads a URL list written by Run.
func LoadURLs(path string) ([]string, error) {
	var urls []string
	if err := readInput(path, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// LoadMapping reads a URL to record id mapping written by Run.
func LoadMapping(path string) (map[string]string, error) {
	mapping := make(map[string]string)
	if err := readInput(path, &mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

func readInput(path string, v interface{}) error {
	err := storage.ReadJSON(path, v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return errs.Config("input file %s not found", path)
	default:
		return errs.Wrap(errs.ErrorTypeParsing, err, "failed to read "+path)
	}
}
