package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkotelnikov/credvault/internal/models"
)

func TestToEnv(t *testing.T) {
	out := ToEnv([]Pair{
		{Name: "DB_HOST", Value: "localhost"},
		{Name: "DB_PASS", Value: "p@ss word"},
		{Name: "NOTE", Value: `say "hi"`},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "DB_HOST=localhost", lines[0])
	assert.Equal(t, `DB_PASS="p@ss word"`, lines[1])
	assert.Equal(t, `NOTE="say \"hi\""`, lines[2])
}

func TestToCSV(t *testing.T) {
	records := []models.Credential{
		{ID: "1", Name: "DB", Kind: models.KindSecret, Username: "admin"},
		{ID: "2", Name: "API", Kind: models.KindAPIKey, Service: "github"},
	}
	values := map[string]string{"1": "p@ss,with,commas"}

	out, err := ToCSV(records, values)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "name,kind,username,url,service,environment,description,value", lines[0])
	assert.Contains(t, lines[1], `"p@ss,with,commas"`)
	assert.True(t, strings.HasSuffix(lines[2], ","), "missing value renders empty")
}
