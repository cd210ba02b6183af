package output

import (
	"encoding/json"
	"io"
)

// WriteJSON writes v as indented JSON followed by a new line.
func WriteJSON(w io.Writer, v interface{}) error {
	serialized, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = w.Write(append(serialized, '\n'))
	return err
}
