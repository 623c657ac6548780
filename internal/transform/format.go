package transform

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"

	"github.com/shiptrack/gateway/internal/config"
)

// Serialize encodes a payload in the configured wire format.
func Serialize(data map[string]interface{}, format string) ([]byte, string, error) {
	switch format {
	case config.FormatXML:
		body, err := marshalXML(data)
		return body, "application/xml", err
	case config.FormatCSV:
		body, err := marshalCSV(data)
		return body, "text/csv", err
	default:
		body, err := json.Marshal(data)
		return body, "application/json", err
	}
}

// marshalXML writes the payload as a flat element tree under a
// <response> root. Map keys become element names in sorted order so
// output is deterministic.
func marshalXML(data map[string]interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	if err := writeXMLElement(&buf, "response", data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// xmlNamePattern is the subset of XML names accepted as element names.
var xmlNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// xmlTags returns open and close tags for a map key. Keys that are not
// valid element names get a wrapper element carrying the key as an
// escaped attribute so the document stays well-formed.
func xmlTags(name string) (string, string, error) {
	if xmlNamePattern.MatchString(name) {
		return "<" + name + ">", "</" + name + ">", nil
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(name)); err != nil {
		return "", "", err
	}
	return `<field name="` + escaped.String() + `">`, "</field>", nil
}

func writeXMLElement(buf *bytes.Buffer, name string, value interface{}) error {
	open, closing, err := xmlTags(name)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case map[string]interface{}:
		buf.WriteString(open)
		for _, key := range sortedKeys(v) {
			if err := writeXMLElement(buf, key, v[key]); err != nil {
				return err
			}
		}
		buf.WriteString(closing)
	case []interface{}:
		for _, item := range v {
			if err := writeXMLElement(buf, name, item); err != nil {
				return err
			}
		}
	default:
		buf.WriteString(open)
		if err := xml.EscapeText(buf, []byte(fmt.Sprint(v))); err != nil {
			return err
		}
		buf.WriteString(closing)
	}

	return nil
}

// marshalCSV writes the payload as a header row of sorted top-level
// keys and one value row. Nested values are JSON-encoded into their
// cell.
func marshalCSV(data map[string]interface{}) ([]byte, error) {
	keys := sortedKeys(data)

	row := make([]string, len(keys))
	for i, key := range keys {
		switch v := data[key].(type) {
		case map[string]interface{}, []interface{}:
			cell, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			row[i] = string(cell)
		default:
			row[i] = fmt.Sprint(v)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(keys); err != nil {
		return nil, err
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()

	return buf.Bytes(), w.Error()
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
