package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnakeCaseKeys(t *testing.T) {
	out := SnakeCaseKeys(map[string]interface{}{
		"shipmentRef":  "SHP-1",
		"CarrierCode":  "dhl",
		"tracking-url": "https://x",
		"nested": map[string]interface{}{
			"contactEmail": "a@b.co",
		},
		"items": []interface{}{
			map[string]interface{}{"unitPrice": 1.5},
		},
	})

	assert.Equal(t, "SHP-1", out["shipment_ref"])
	assert.Equal(t, "dhl", out["carrier_code"])
	assert.Equal(t, "https://x", out["tracking_url"])
	assert.Equal(t, "a@b.co", out["nested"].(map[string]interface{})["contact_email"])
	items := out["items"].([]interface{})
	assert.Equal(t, 1.5, items[0].(map[string]interface{})["unit_price"])
}

func TestParseTimestamps(t *testing.T) {
	out := ParseTimestamps(map[string]interface{}{
		"created_at":   "2026-08-30 14:05:00",
		"ship_date":    "01/02/2026",
		"delivered_at": "2026-08-30T14:05:00Z",
		"reference":    "2026-08-30",
		"pickup_at":    "not a date",
	})

	assert.Equal(t, "2026-08-30T14:05:00Z", out["created_at"])
	assert.Equal(t, "2026-01-02T00:00:00Z", out["ship_date"])
	assert.Equal(t, "2026-08-30T14:05:00Z", out["delivered_at"])

	// Non-timestamp field names and unparseable values pass through.
	assert.Equal(t, "2026-08-30", out["reference"])
	assert.Equal(t, "not a date", out["pickup_at"])
}

func TestRoundCurrency(t *testing.T) {
	out := RoundCurrency(map[string]interface{}{
		"total":        10.006,
		"unit_price":   3.14159,
		"shipping_fee": 2.999,
		"weight":       1.23456,
		"items": []interface{}{
			map[string]interface{}{"amount": 0.556},
		},
	})

	assert.Equal(t, 10.01, out["total"])
	assert.Equal(t, 3.14, out["unit_price"])
	assert.Equal(t, 3.0, out["shipping_fee"])
	assert.Equal(t, 1.23456, out["weight"])
	items := out["items"].([]interface{})
	assert.Equal(t, 0.56, items[0].(map[string]interface{})["amount"])
}

func TestStripSensitive(t *testing.T) {
	out := StripSensitive(map[string]interface{}{
		"reference": "SHP-1",
		"password":  "hunter2",
		"API_KEY":   "sk-live",
		"customer": map[string]interface{}{
			"name":  "Acme",
			"token": "t",
		},
	})

	assert.Equal(t, "SHP-1", out["reference"])
	_, ok := out["password"]
	assert.False(t, ok)
	_, ok = out["API_KEY"]
	assert.False(t, ok)

	customer := out["customer"].(map[string]interface{})
	assert.Equal(t, "Acme", customer["name"])
	_, ok = customer["token"]
	assert.False(t, ok)
}

func TestLookup(t *testing.T) {
	require.NotNil(t, Lookup("snake_case"))
	require.NotNil(t, Lookup("parse_timestamps"))
	require.NotNil(t, Lookup("round_currency"))
	require.NotNil(t, Lookup("strip_sensitive"))
	assert.Nil(t, Lookup("does_not_exist"))
}
