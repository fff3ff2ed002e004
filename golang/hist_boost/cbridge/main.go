// SPDX-License-Identifier: Apache-2.0

package main

/*
#cgo CFLAGS: -I.
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

var handles = newRegistry()

//status records err as the last error and converts it to a C return code.
func status(err error) C.int {
	handles.setLastError(err)
	if err != nil {
		return -1
	}
	return 0
}

func copyFloatSlice(ptr *C.double, length int) ([]float64, error) {
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length == 0 {
		return nil, nil
	}
	if ptr == nil {
		return nil, errors.New("null pointer for non-empty slice")
	}
	src := unsafe.Slice((*float64)(unsafe.Pointer(ptr)), length)
	dst := make([]float64, length)
	copy(dst, src)
	return dst, nil
}

func handleSlice(ptr *C.ulonglong, length C.ulonglong) []uint64 {
	if ptr == nil || length == 0 {
		return nil
	}
	src := unsafe.Slice((*uint64)(unsafe.Pointer(ptr)), int(length))
	return append([]uint64(nil), src...)
}

func stringSlice(ptr **C.char, length C.ulonglong) []string {
	if ptr == nil || length == 0 {
		return nil
	}
	src := unsafe.Slice(ptr, int(length))
	result := make([]string, len(src))
	for ind, str := range src {
		result[ind] = C.GoString(str)
	}
	return result
}

//export DMatrixCreateFromFile
func DMatrixCreateFromFile(uri *C.char, out *C.ulonglong) C.int {
	handle, err := handles.matrixFromFile(C.GoString(uri))
	if err == nil {
		*out = C.ulonglong(handle)
	}
	return status(err)
}

//export DMatrixCreateFromMat
func DMatrixCreateFromMat(data *C.double, rows, cols C.ulonglong, missing C.double, out *C.ulonglong) C.int {
	values, err := copyFloatSlice(data, int(rows*cols))
	if err != nil {
		return status(err)
	}
	handle, err := handles.matrixFromColMajor(values, int(rows), int(cols), float64(missing))
	if err == nil {
		*out = C.ulonglong(handle)
	}
	return status(err)
}

//export DMatrixSetFloatInfo
func DMatrixSetFloatInfo(handle C.ulonglong, field *C.char, data *C.double, length C.ulonglong) C.int {
	values, err := copyFloatSlice(data, int(length))
	if err != nil {
		return status(err)
	}
	return status(handles.setFloatInfo(uint64(handle), C.GoString(field), values))
}

//export DMatrixFree
func DMatrixFree(handle C.ulonglong) C.int {
	handles.freeMatrix(uint64(handle))
	return status(nil)
}

//export BoosterCreate
func BoosterCreate(dmats *C.ulonglong, length C.ulonglong, out *C.ulonglong) C.int {
	handle, err := handles.createSession(handleSlice(dmats, length))
	if err == nil {
		*out = C.ulonglong(handle)
	}
	return status(err)
}

//export BoosterSetParam
func BoosterSetParam(handle C.ulonglong, name, value *C.char) C.int {
	return status(handles.setParam(uint64(handle), C.GoString(name), C.GoString(value)))
}

//export BoosterUpdateOneIter
func BoosterUpdateOneIter(handle C.ulonglong, iter C.int, train C.ulonglong) C.int {
	return status(handles.updateOneIter(uint64(handle), int(iter), uint64(train)))
}

//BoosterEvalOneIter writes the eval string to *out; release it with FreeCString.
//
//export BoosterEvalOneIter
func BoosterEvalOneIter(handle C.ulonglong, iter C.int, dmats *C.ulonglong, setsLen C.ulonglong,
	names **C.char, namesLen C.ulonglong, out **C.char) C.int {
	result, err := handles.evalOneIter(uint64(handle), int(iter), handleSlice(dmats, setsLen), stringSlice(names, namesLen))
	if err == nil {
		*out = C.CString(result)
	}
	return status(err)
}

//export BoosterGetNumFeature
func BoosterGetNumFeature(handle C.ulonglong, out *C.ulonglong) C.int {
	n, err := handles.numFeature(uint64(handle))
	if err == nil {
		*out = C.ulonglong(n)
	}
	return status(err)
}

//BoosterPredict copies rows x outputs values into result. When capacity is too small
//nothing is copied, *outLen holds the required length and the call fails.
//
//export BoosterPredict
func BoosterPredict(handle, dmat C.ulonglong, outputMargin C.int, treeLimit C.int,
	result *C.double, capacity C.ulonglong, outLen *C.ulonglong) C.int {
	prediction, err := handles.predict(uint64(handle), uint64(dmat), outputMargin != 0, int(treeLimit))
	if err != nil {
		return status(err)
	}
	*outLen = C.ulonglong(len(prediction))
	if int(capacity) < len(prediction) {
		return status(errors.Errorf("prediction needs %d values, buffer holds %d", len(prediction), capacity))
	}
	if len(prediction) > 0 {
		copy(unsafe.Slice((*float64)(unsafe.Pointer(result)), len(prediction)), prediction)
	}
	return status(nil)
}

//export BoosterSaveModel
func BoosterSaveModel(handle C.ulonglong, path *C.char) C.int {
	return status(handles.saveModel(uint64(handle), C.GoString(path)))
}

//export BoosterLoadModel
func BoosterLoadModel(path *C.char, out *C.ulonglong) C.int {
	handle, err := handles.loadModel(C.GoString(path))
	if err == nil {
		*out = C.ulonglong(handle)
	}
	return status(err)
}

//export BoosterFree
func BoosterFree(handle C.ulonglong) C.int {
	handles.freeSession(uint64(handle))
	return status(nil)
}

//export GetLastError
func GetLastError() *C.char {
	errStr := handles.getLastError()
	if errStr == "" {
		return nil
	}
	return C.CString(errStr)
}

//export FreeCString
func FreeCString(str *C.char) {
	if str != nil {
		C.free(unsafe.Pointer(str))
	}
}

func main() {}
