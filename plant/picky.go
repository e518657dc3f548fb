package plant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

func pickyUnmarshal(data []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(integralNumbers(data)))
	d.DisallowUnknownFields()
	err := d.Decode(v)
	if err != nil {
		return err
	}
	// The data should be one value and nothing more
	if t, err := d.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after decode: %T / %v, err %w", t, t, err)
	}
	return nil
}
