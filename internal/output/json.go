package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats output as indented JSON. Error messages from the
// Band API may contain markup, so HTML escaping is off.
type JSONFormatter struct{}

func (f *JSONFormatter) Write(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}
