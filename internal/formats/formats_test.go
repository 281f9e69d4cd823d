package formats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateTime(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"utc", "2021-03-04T05:06:07Z", false},
		{"fraction", "2021-03-04T05:06:07.123456Z", false},
		{"offset", "2021-03-04T05:06:07+02:00", false},
		{"negative offset", "2021-03-04T23:59:59-11:30", false},
		{"leap day in leap year", "2020-02-29T00:00:00Z", false},
		{"leap day in 400 year", "2000-02-29T00:00:00Z", false},
		{"leap second", "2016-12-31T23:59:60Z", false},
		{"leap day in non-leap year", "2021-02-29T00:00:00Z", true},
		{"leap day in 100 year", "1900-02-29T00:00:00Z", true},
		{"april 31", "2021-04-31T00:00:00Z", true},
		{"hour 24", "2021-03-04T24:00:00Z", true},
		{"minute 60", "2021-03-04T05:60:00Z", true},
		{"second 61", "2021-03-04T05:06:61Z", true},
		{"missing zone", "2021-03-04T05:06:07", true},
		{"date only", "2021-03-04", true},
		{"month 13", "2021-13-04T05:06:07Z", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DateTime(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDaysIn(t *testing.T) {
	assert.Equal(t, 29, DaysIn(2, 2024))
	assert.Equal(t, 28, DaysIn(2, 2023))
	assert.Equal(t, 28, DaysIn(2, 2100))
	assert.Equal(t, 29, DaysIn(2, 2400))
	assert.Equal(t, 30, DaysIn(11, 2023))
	assert.Equal(t, 31, DaysIn(12, 2023))
}

func TestEmail(t *testing.T) {
	valid := []string{
		"user@example.com",
		"first.last@sub.example.org",
		"o'brien+tag@example.co",
		"User.Name@Example.COM",
		`"john..doe"@example.com`,
		"x@localhost",
	}
	for _, v := range valid {
		assert.NoError(t, Email(v), v)
	}

	invalid := []string{
		"no-at-sign.example.com",
		"two@@example.com",
		"a@b@example.com",
		".leading-dot@example.com",
		"double..dot@example.com",
		"user@-bad-.com",
		"user@",
		"@example.com",
	}
	for _, v := range invalid {
		assert.Error(t, Email(v), v)
	}

	err := Email("a@b@c.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2")
}

func TestHostname(t *testing.T) {
	assert.NoError(t, Hostname("example.com"))
	assert.NoError(t, Hostname("EXAMPLE.com"))
	assert.NoError(t, Hostname("a"))
	assert.NoError(t, Hostname("xn--bcher-kva.example"))
	assert.NoError(t, Hostname(strings.Repeat("a", 63)+".com"))

	assert.Error(t, Hostname(strings.Repeat("a", 64)+".com"), "label over 63 chars")
	assert.Error(t, Hostname("-leading.com"))
	assert.Error(t, Hostname("trailing-.com"))
	assert.Error(t, Hostname("under_score.com"))
	assert.Error(t, Hostname("example..com"))
	assert.Error(t, Hostname(""))

	label := strings.Repeat("a", 63)
	long := strings.Join([]string{label, label, label, label, label}, ".")
	require.Greater(t, len(long), 255)
	err := Hostname(long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length")
}

func TestIPv4(t *testing.T) {
	for _, v := range []string{"0.0.0.0", "127.0.0.1", "255.255.255.255", "192.168.1.1"} {
		assert.NoError(t, IPv4(v), v)
	}
	for _, v := range []string{"256.0.0.1", "1.2.3", "1.2.3.4.5", "a.b.c.d", "1.2.3.4 ", ""} {
		assert.Error(t, IPv4(v), v)
	}
}

func TestExpandIPv6(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"::1", "0:0:0:0:0:0:0:1"},
		{"::", "0:0:0:0:0:0:0:0"},
		{"1::", "1:0:0:0:0:0:0:0"},
		{"2001:db8::1", "2001:db8:0:0:0:0:0:1"},
		{"fe80::1:2", "fe80:0:0:0:0:0:1:2"},
		{"::ffff:192.168.1.1", "0:0:0:0:0:ffff:192.168.1.1"},
		{"1:2:3:4:5:6:7:8", "1:2:3:4:5:6:7:8"},
		{"1:2:3:4:5:6:7::", "1:2:3:4:5:6:7:0"},
		{"::2:3:4:5:6:7:8", "0:2:3:4:5:6:7:8"},
		{"1:2:3::5:6:7:8", "1:2:3:0:5:6:7:8"},
		{"1:2:3:4:5::1.2.3.4", "1:2:3:4:5:0:1.2.3.4"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandIPv6(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := ExpandIPv6(got)
			require.NoError(t, err)
			assert.Equal(t, got, again, "expansion must be idempotent")
		})
	}

	_, err := ExpandIPv6("1::2::3")
	assert.Error(t, err)
	_, err = ExpandIPv6("1:2:3:4:5:6:7::8")
	assert.ErrorContains(t, err, "too many groups")
}

func TestIPv6(t *testing.T) {
	valid := []string{
		"::1",
		"::",
		"2001:db8::1",
		"2001:0db8:85a3:0000:0000:8a2e:0370:7334",
		"FE80::0202:B3FF:FE1E:8329",
		"::ffff:192.168.1.1",
		"1:2:3:4:5:6:1.2.3.4",
		"1:2:3:4:5:6:7::",
		"::2:3:4:5:6:7:8",
	}
	for _, v := range valid {
		assert.NoError(t, IPv6(v), v)
	}

	invalid := []string{
		"1:2:3:4:5:6:7:8:9",
		"1:2:3:4:5:6:7",
		"1::2::3",
		"12345::1",
		"g::1",
		"1:2:3:4:5:6:7::8",
		"",
	}
	for _, v := range invalid {
		assert.Error(t, IPv6(v), v)
	}
}

func TestURI(t *testing.T) {
	for _, v := range []string{
		"https://example.com/path?q=1#frag",
		"urn:isbn:0451450523",
		"mailto:someone@example.com",
		"/relative/path",
		"ftp://user@host:21/file",
	} {
		assert.NoError(t, URI(v), v)
	}
	for _, v := range []string{"has space", "http://exa mple.com", "1http://x", "tab\there"} {
		assert.Error(t, URI(v), v)
	}
}

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.Error(t, UUID("550E8400-E29B-41D4-A716-446655440000"), "uppercase is rejected")
	assert.Error(t, UUID("550e8400e29b41d4a716446655440000"))
	assert.Error(t, UUID("{550e8400-e29b-41d4-a716-446655440000}"))
	assert.Error(t, UUID(""))
}

func TestHex(t *testing.T) {
	assert.NoError(t, Hex("deadbeef0123"))
	assert.Error(t, Hex("DEADBEEF"))
	assert.Error(t, Hex("xyz"))
	assert.Error(t, Hex(""))
}

func TestRegistryValidate(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{"date-time", "email", "hex", "hostname", "ipv4", "ipv6", "uri", "uuid"}, r.Names())

	t.Run("unknown format is a no-op", func(t *testing.T) {
		assert.False(t, r.Has("credit-card"))
		assert.NoError(t, r.Validate("credit-card", "anything"))
	})

	t.Run("nil and non-string values are vacuously valid", func(t *testing.T) {
		assert.NoError(t, r.Validate("uuid", nil))
		assert.NoError(t, r.Validate("uuid", 42.0))
	})

	t.Run("delegates to validator", func(t *testing.T) {
		assert.NoError(t, r.Validate("ipv4", "10.0.0.1"))
		assert.Error(t, r.Validate("ipv4", "10.0.0.300"))
	})

	t.Run("panicking validator becomes an error", func(t *testing.T) {
		r.Register("explodes", func(string) error { panic("boom") })
		err := r.Validate("explodes", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}
