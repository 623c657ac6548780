package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPath(t *testing.T) {
	data := map[string]interface{}{
		"reference": "SHP-1",
		"customer": map[string]interface{}{
			"address": map[string]interface{}{"city": "Rotterdam"},
		},
	}

	v, ok := GetPath(data, "reference")
	require.True(t, ok)
	assert.Equal(t, "SHP-1", v)

	v, ok = GetPath(data, "customer.address.city")
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", v)

	_, ok = GetPath(data, "customer.phone")
	assert.False(t, ok)

	_, ok = GetPath(data, "reference.sub")
	assert.False(t, ok)
}

func TestSetPath_CreatesIntermediates(t *testing.T) {
	data := map[string]interface{}{}
	SetPath(data, "customer.address.city", "Rotterdam")

	v, ok := GetPath(data, "customer.address.city")
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", v)
}

func TestDeletePath(t *testing.T) {
	data := map[string]interface{}{
		"customer": map[string]interface{}{"name": "Acme", "vat": "NL1"},
	}

	DeletePath(data, "customer.vat")
	_, ok := GetPath(data, "customer.vat")
	assert.False(t, ok)

	v, ok := GetPath(data, "customer.name")
	require.True(t, ok)
	assert.Equal(t, "Acme", v)

	// Missing paths are a no-op.
	DeletePath(data, "nothing.here")
}

func TestApplyMappings(t *testing.T) {
	data := map[string]interface{}{
		"shipment_ref": "SHP-1",
		"dest": map[string]interface{}{
			"city": "Rotterdam",
		},
	}

	out := ApplyMappings(data, map[string]string{
		"reference":        "shipment_ref",
		"destination.city": "dest.city",
	})

	v, ok := GetPath(out, "reference")
	require.True(t, ok)
	assert.Equal(t, "SHP-1", v)

	v, ok = GetPath(out, "destination.city")
	require.True(t, ok)
	assert.Equal(t, "Rotterdam", v)

	_, ok = GetPath(out, "shipment_ref")
	assert.False(t, ok)

	// The input is untouched.
	_, ok = GetPath(data, "shipment_ref")
	assert.True(t, ok)
}

func TestApplyMappings_MissingSourceSkipped(t *testing.T) {
	data := map[string]interface{}{"a": 1}
	out := ApplyMappings(data, map[string]string{"b": "missing"})

	assert.Equal(t, map[string]interface{}{"a": 1}, out)
}

func TestApplyMappings_EmptyMappingsStillCopies(t *testing.T) {
	data := map[string]interface{}{
		"carrier": "dhl",
		"parcel":  map[string]interface{}{"weight": 2.5},
	}

	out := ApplyMappings(data, nil)
	out["added"] = true
	out["parcel"].(map[string]interface{})["weight"] = 99.0

	assert.NotContains(t, data, "added")
	assert.Equal(t, 2.5, data["parcel"].(map[string]interface{})["weight"])
}

func TestMappingRoundTrip(t *testing.T) {
	mappings := map[string]string{
		"reference":      "shipment_ref",
		"carrier_code":   "carrier",
		"delivery.notes": "notes",
	}

	original := map[string]interface{}{
		"shipment_ref": "SHP-1",
		"carrier":      "dhl",
		"notes":        "leave at door",
		"untouched":    "value",
	}

	// Mapping inbound and then applying the reversed mapping outbound
	// restores the original field names.
	mapped := ApplyMappings(original, mappings)
	restored := ApplyMappings(mapped, ReverseMappings(mappings))

	assert.Equal(t, "SHP-1", restored["shipment_ref"])
	assert.Equal(t, "dhl", restored["carrier"])
	assert.Equal(t, "leave at door", restored["notes"])
	assert.Equal(t, "value", restored["untouched"])

	// Only the empty intermediate container may remain.
	if delivery, ok := restored["delivery"]; ok {
		assert.Empty(t, delivery)
	}
}
