package audit

import (
	"bytes"
	"encoding/csv"
	"strings"
	"time"
)

var csvHeader = []string{"timestamp", "id", "type", "actor_uid", "target_uid", "target_email", "role", "active", "modules"}

// Exporter menulis timeline audit ke CSV.
type Exporter struct{}

// NewExporter membuat exporter CSV.
func NewExporter() *Exporter {
	return &Exporter{}
}

// WriteCSV encodes rows with a header line. Modules are joined with "|".
func (e *Exporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		active := ""
		if row.Active != nil {
			active = "false"
			if *row.Active {
				active = "true"
			}
		}
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.ID,
			row.Type,
			row.Actor,
			row.TargetID,
			row.TargetEmail,
			row.Role,
			active,
			strings.Join(row.Modules, "|"),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
