// Package export formats credential read results for out-of-core
// consumers: .env file generation and CSV. It carries no invariants of
// its own and only ever sees what read and list return.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/vkotelnikov/credvault/internal/models"
)

// Pair is one name/value line for .env output.
type Pair struct {
	Name  string
	Value string
}

// ToEnv renders pairs as .env lines. Values containing whitespace,
// quotes or # are double-quoted with inner quotes escaped.
func ToEnv(pairs []Pair) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.Name)
		b.WriteByte('=')
		b.WriteString(quoteEnvValue(p.Value))
		b.WriteByte('\n')
	}
	return b.String()
}

func quoteEnvValue(v string) string {
	if strings.ContainsAny(v, " \t\n\"'#") {
		return fmt.Sprintf("%q", v)
	}
	return v
}

// ToCSV renders records and their decrypted values as CSV. values maps
// record id to plaintext; ids absent from the map render empty.
func ToCSV(records []models.Credential, values map[string]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"name", "kind", "username", "url", "service", "environment", "description", "value"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name, string(r.Kind), r.Username, r.URL,
			r.Service, r.Environment, r.Description, values[r.ID],
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}
