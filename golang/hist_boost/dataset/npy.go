package dataset

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//ReadNpy loads a 2-D features array and, when labelsFile is not empty, a labels array
//holding one value per row.
func ReadNpy(featuresFile, labelsFile string, missing float64) (*hbl.DMatrix, error) {
	features := &mat.Dense{}
	if err := readNpy(featuresFile, features); err != nil {
		return nil, err
	}
	m, err := hbl.NewDMatrixFromDense(features, missing)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", featuresFile)
	}
	if labelsFile == "" {
		return m, nil
	}

	var labels []float64
	if err := readNpy(labelsFile, &labels); err != nil {
		return nil, err
	}
	return m.WithLabels(labels)
}

//readNpy reads the content of npy file into ptr.
func readNpy(fileName string, ptr interface{}) error {
	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "read %s", fileName)
	}
	if err := r.Read(ptr); err != nil {
		return errors.Wrapf(err, "read %s", fileName)
	}
	return nil
}

//WriteNpy stores a matrix as an npy file.
func WriteNpy(fileName string, m mat.Matrix) (err error) {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := dst.Close(); err == nil {
			err = closeErr
		}
	}()
	return npyio.Write(dst, m)
}
