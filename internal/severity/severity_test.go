package severity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_AssessmentMarkerWins(t *testing.T) {
	text := "Device X is mostly fine with low latency.\nRISK ASSESSMENT: HIGH\nFollow-up required."
	level, ok := Classify(text)
	require.True(t, ok)
	assert.Equal(t, High, level)
}

func TestClassify_MarkerIsCaseInsensitive(t *testing.T) {
	level, ok := Classify("risk assessment: critical")
	require.True(t, ok)
	assert.Equal(t, Critical, level)
}

func TestClassify_MarkerWithUnknownLevel(t *testing.T) {
	// The marker is authoritative; an unrecognized level does not fall back
	// to keyword scanning even though "medium" appears elsewhere.
	_, ok := Classify("RISK ASSESSMENT: SEVERE. Workload intensity is medium.")
	assert.False(t, ok)
}

func TestClassify_KeywordFallbackPrefersMostSevere(t *testing.T) {
	level, ok := Classify("The medium workload masks a critical battery fault.")
	require.True(t, ok)
	assert.Equal(t, Critical, level, "CRITICAL must win regardless of position")
}

func TestClassify_KeywordOrder(t *testing.T) {
	cases := []struct {
		text string
		want Level
	}{
		{"everything nominal, low risk only", Low},
		{"low risk overall but medium memory pressure", Medium},
		{"medium concerns plus high temperature", High},
		{"high latency and CRITICAL packet loss", Critical},
	}
	for _, tc := range cases {
		level, ok := Classify(tc.text)
		require.True(t, ok, tc.text)
		assert.Equal(t, tc.want, level, tc.text)
	}
}

func TestClassify_Unclassifiable(t *testing.T) {
	_, ok := Classify("")
	assert.False(t, ok)

	_, ok = Classify("   \n\t ")
	assert.False(t, ok)

	_, ok = Classify("all metrics nominal, no concerns")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	for _, s := range []string{"low", "LOW", " Low "} {
		level, ok := Parse(s)
		require.True(t, ok, s)
		assert.Equal(t, Low, level)
	}
	_, ok := Parse("urgent")
	assert.False(t, ok)
}

func TestLevel_Ordering(t *testing.T) {
	assert.True(t, Low < Medium && Medium < High && High < Critical)

	assert.False(t, Low.RequiresForwarding())
	assert.True(t, Medium.RequiresForwarding())
	assert.True(t, High.RequiresForwarding())
	assert.True(t, Critical.RequiresForwarding())
}

func TestLevel_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(High)
	require.NoError(t, err)
	assert.Equal(t, `"HIGH"`, string(data))

	var l Level
	require.NoError(t, json.Unmarshal([]byte(`"MEDIUM"`), &l))
	assert.Equal(t, Medium, l)

	assert.Error(t, json.Unmarshal([]byte(`"URGENT"`), &l))
}

func TestCounts_JSONShape(t *testing.T) {
	var c Counts
	c.Add(Low)
	c.Add(High)
	c.Add(High)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"LOW":1,"MEDIUM":0,"HIGH":2,"CRITICAL":0}`, string(data))
}
