package common

import (
	"bytes"
	"encoding/json"
	"os"
)

func Encode(data interface{}) ([]byte, error) {
	buff := new(bytes.Buffer)
	encoder := json.NewEncoder(buff)
	err := encoder.Encode(data)
	if err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// Decode keeps JSON numbers as json.Number so that re-encoding
// a decoded transaction yields the same bytes.
func Decode[T interface{}](bs []byte) (*T, error) {
	buff := new(bytes.Buffer)
	var data T
	buff.Write(bs)
	decoder := json.NewDecoder(buff)
	decoder.UseNumber()
	err := decoder.Decode(&data)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func FindAll[T interface{}](
	s []T, f func(e T) bool,
) []T {
	found := []T{}
	for _, elem := range s {
		if f(elem) {
			found = append(found, elem)
		}
	}
	return found
}

func ExistFile(name string) bool {
	_, err := os.Stat(name)
	return !os.IsNotExist(err)
}
