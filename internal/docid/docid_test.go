package docid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pid = "6f1c2f3e-8a8b-4f5e-9c1d-2b3a4c5d6e7f"

func TestProjectDocID(t *testing.T) {
	assert.Equal(t, pid, ProjectDocID(" 6F1C2F3E-8A8B-4F5E-9C1D-2B3A4C5D6E7F "))
}

func TestParseProjectDocID(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"plain", pid, pid, true},
		{"upper", "6F1C2F3E-8A8B-4F5E-9C1D-2B3A4C5D6E7F", pid, true},
		{"prefix", pid + "-copy", pid, true},
		{"garbage", "not-a-project", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseProjectDocID(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSerialSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SN001", "sn001"},
		{"  SN 001  ", "sn-001"},
		{"ab__cd", "ab-cd"},
		{"a--b", "a--b"},
		{"-x-", "x"},
		{"#/!", ""},
		{"Ä1", "1"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SerialSlug(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeSerial(t *testing.T) {
	assert.Equal(t, "sn001", NormalizeSerial("  SN001\t"))
	assert.Equal(t, "", NormalizeSerial("   "))
}

func TestFixtureDocID(t *testing.T) {
	assert.Equal(t, "fixture-p1-addr-3", FixtureDocID("p1", "", 3))
	assert.Equal(t, "fixture-p1-addr-3", FixtureDocID("p1", "   ", 3))
	assert.Equal(t, "fixture-p1-ser-sn001", FixtureDocID("p1", "SN001", 3))
	assert.Equal(t, "fixture-p1-addr-7", FixtureDocID("P1", "***", 7))
}

func TestFixtureDocID_Deterministic(t *testing.T) {
	a := FixtureDocID(pid, "Serial 42", 12)
	b := FixtureDocID(pid, "Serial 42", 12)
	assert.Equal(t, a, b)

	withoutSerial := FixtureDocID(pid, "", 12)
	assert.NotEqual(t, a, withoutSerial)
}

func TestFixtureDocIDVariants(t *testing.T) {
	got := FixtureDocIDVariants("p1", "SN1", 4, "")
	assert.Equal(t, []string{"fixture-p1-ser-sn1", "fixture-p1-addr-4"}, got)

	got = FixtureDocIDVariants("p1", "", 4, "fixture-p1-addr-4")
	assert.Equal(t, []string{"fixture-p1-addr-4"}, got)

	got = FixtureDocIDVariants("p1", "", 5, "fixture-p1-ser-old")
	assert.Equal(t, []string{"fixture-p1-addr-5", "fixture-p1-ser-old"}, got)
}

func TestParseFixtureDocID(t *testing.T) {
	p, kind, key, ok := ParseFixtureDocID("fixture-" + pid + "-ser-sn-addr-1")
	require.True(t, ok)
	assert.Equal(t, pid, p)
	assert.Equal(t, KindSerial, kind)
	assert.Equal(t, "sn-addr-1", key)

	p, kind, key, ok = ParseFixtureDocID("fixture-" + pid + "-addr-12")
	require.True(t, ok)
	assert.Equal(t, pid, p)
	assert.Equal(t, KindAddress, kind)
	assert.Equal(t, "12", key)

	for _, bad := range []string{"", "project-1", "fixture-p1-addr-x", "fixture-p1-ser-", "fixture--addr-1"} {
		_, _, _, ok := ParseFixtureDocID(bad)
		assert.False(t, ok, bad)
	}
}
