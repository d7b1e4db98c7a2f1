package domain

import (
	"bytes"
	"encoding/csv"
)

// ExportCSV renders a conversation history as CSV bytes with a role,content
// header. It returns nil when there is nothing to export.
func ExportCSV(turns []Turn) ([]byte, error) {
	if len(turns) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"role", "content"}); err != nil {
		return nil, err
	}
	for _, t := range turns {
		if err := w.Write([]string{t.Role, t.Content}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
