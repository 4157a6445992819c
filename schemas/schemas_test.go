package schemas

import (
	"encoding/json"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	files, err := fs.Glob(FS, "*.schema.json")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{CapabilityProfile, MatchResults}, files)

	for _, name := range files {
		t.Run(name, func(t *testing.T) {
			data, err := FS.ReadFile(name)
			require.NoError(t, err)

			var schemaObj map[string]any
			require.NoError(t, json.Unmarshal(data, &schemaObj), "schema file should be valid JSON")
			assert.Equal(t, "http://json-schema.org/draft-07/schema#", schemaObj["$schema"])
			assert.Equal(t, name, schemaObj["$id"])
		})
	}
}

func TestSchemaFiles_Compile(t *testing.T) {
	for _, name := range []string{CapabilityProfile, MatchResults} {
		t.Run(name, func(t *testing.T) {
			data, err := FS.ReadFile(name)
			require.NoError(t, err)

			_, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			assert.NoError(t, err, "schema should compile, including internal $refs")
		})
	}
}
