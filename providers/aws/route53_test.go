package aws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordIDRoundTrip(t *testing.T) {
	id := recordID("Z0123456789", "api.example.com.", "A")
	assert.Equal(t, "Z0123456789:api.example.com.:A", id)

	zone, name, recordType, err := parseRecordID(id)
	require.NoError(t, err)
	assert.Equal(t, "Z0123456789", zone)
	assert.Equal(t, "api.example.com.", name)
	assert.Equal(t, "A", recordType)
}

func TestParseRecordIDMalformed(t *testing.T) {
	for _, id := range []string{"", "zone", "zone:name", "::A"} {
		_, _, _, err := parseRecordID(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestRecordSetDefaultsTTL(t *testing.T) {
	cfg := &route53Config{Name: "api.example.com.", Type: "A", Records: []string{"10.0.0.1"}}
	set := cfg.recordSet()
	assert.EqualValues(t, 300, *set.TTL)
	require.Len(t, set.ResourceRecords, 1)
	assert.Equal(t, "10.0.0.1", *set.ResourceRecords[0].Value)
}
