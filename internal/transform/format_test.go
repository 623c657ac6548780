package transform

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiptrack/gateway/internal/config"
)

func TestMarshalXML_HostileKeysStayWellFormed(t *testing.T) {
	body, contentType, err := Serialize(map[string]interface{}{
		"carrier":      "dhl",
		"bad key<":     "x",
		"1leading":     "y",
		"with\"quote":  "z",
		"ok_name.v1-a": "w",
	}, config.FormatXML)
	require.NoError(t, err)
	assert.Equal(t, "application/xml", contentType)

	out := string(body)
	assert.Contains(t, out, "<carrier>dhl</carrier>")
	assert.Contains(t, out, "<ok_name.v1-a>w</ok_name.v1-a>")
	assert.Contains(t, out, `<field name="bad key&lt;">x</field>`)
	assert.Contains(t, out, `<field name="1leading">y</field>`)
	assert.NotContains(t, out, "<bad key<>")

	// The whole document must parse.
	decoder := xml.NewDecoder(strings.NewReader(out))
	for {
		_, err := decoder.Token()
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}
}
