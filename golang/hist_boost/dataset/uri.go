package dataset

import (
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//Format names a supported file format.
type Format string

const (
	CSV   Format = "csv"
	Npy   Format = "npy"
	Arrow Format = "arrow"
)

//Source is a parsed data location such as "train.csv?format=csv&label_column=0".
type Source struct {
	Path        string
	Format      Format
	LabelColumn int
	HasHeader   bool
	Missing     float64
	//Labels is the separate labels file of an npy source.
	Labels string
}

//ParseURI splits a data location into the file path and its query options:
//format (csv, npy, arrow; guessed from the extension when absent), label_column,
//header (0 or 1), missing and labels.
func ParseURI(uri string) (Source, error) {
	source := Source{LabelColumn: -1, HasHeader: true, Missing: math.NaN()}
	path, rawQuery, _ := strings.Cut(uri, "?")
	if path == "" {
		return source, errors.Wrapf(hbl.ErrInvalidConfig, "no path in %q", uri)
	}
	source.Path = path

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return source, errors.Wrapf(hbl.ErrInvalidConfig, "query of %q: %v", uri, err)
	}
	for key := range query {
		value := query.Get(key)
		switch key {
		case "format":
			source.Format = Format(strings.ToLower(value))
		case "label_column":
			source.LabelColumn, err = strconv.Atoi(value)
		case "header":
			source.HasHeader, err = strconv.ParseBool(value)
		case "missing":
			source.Missing, err = strconv.ParseFloat(value, 64)
		case "labels":
			source.Labels = value
		default:
			return source, errors.Wrapf(hbl.ErrInvalidConfig, "unknown option %q in %q", key, uri)
		}
		if err != nil {
			return source, errors.Wrapf(hbl.ErrInvalidConfig, "option %s=%q: %v", key, value, err)
		}
	}

	if source.Format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".npy":
			source.Format = Npy
		case ".arrow", ".feather", ".ipc":
			source.Format = Arrow
		default:
			source.Format = CSV
		}
	}
	switch source.Format {
	case CSV, Npy, Arrow:
	default:
		return source, errors.Wrapf(hbl.ErrInvalidConfig, "unknown format %q", source.Format)
	}
	return source, nil
}

//Load reads the source into a matrix.
func (s Source) Load() (*hbl.DMatrix, error) {
	switch s.Format {
	case Npy:
		return ReadNpy(s.Path, s.Labels, s.Missing)
	case Arrow:
		return ReadArrowFile(s.Path, s.LabelColumn, s.Missing)
	}
	return ReadCSV(s.Path, CSVOptions{LabelColumn: s.LabelColumn, HasHeader: s.HasHeader, Missing: s.Missing})
}

//Load parses a data location and reads it.
func Load(uri string) (*hbl.DMatrix, error) {
	source, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return source.Load()
}
