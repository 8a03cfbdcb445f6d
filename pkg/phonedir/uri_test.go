package phonedir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		user    string
		host    string
		str     string
		hasHost bool
	}{
		{
			name: "голый номер",
			raw:  "112",
			user: "112",
			str:  "112",
		},
		{
			name:    "полный SIP URI",
			raw:     "sip:alice@example.com",
			user:    "alice",
			host:    "example.com",
			str:     "sip:alice@example.com",
			hasHost: true,
		},
		{
			name:    "без схемы",
			raw:     "bob@pbx.local",
			user:    "bob",
			host:    "pbx.local",
			str:     "sip:bob@pbx.local",
			hasHost: true,
		},
		{
			name:    "хост приводится к нижнему регистру",
			raw:     "sip:Alice@EXAMPLE.COM",
			user:    "Alice",
			host:    "example.com",
			str:     "sip:Alice@example.com",
			hasHost: true,
		},
		{
			name:    "порт сохраняется",
			raw:     "sip:carol@gw.example.com:5080",
			user:    "carol",
			host:    "gw.example.com",
			str:     "sip:carol@gw.example.com:5080",
			hasHost: true,
		},
		{
			name: "пробелы обрезаются",
			raw:  "  555  ",
			user: "555",
			str:  "555",
		},
		{
			name: "пустая строка",
			raw:  "",
			str:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri := ParseURI(tt.raw)
			assert.Equal(t, tt.user, uri.User())
			assert.Equal(t, tt.host, uri.Host())
			assert.Equal(t, tt.str, uri.String())
			assert.Equal(t, tt.hasHost, uri.HasHost())
		})
	}
}

func TestURINormalizationEquality(t *testing.T) {
	a := ParseURI("sip:alice@Example.Com")
	b := ParseURI("alice@example.com")
	assert.True(t, a.Equal(b), "нормализованные формы должны совпадать")
}

func TestURILonger(t *testing.T) {
	bare := ParseURI("112")
	full := ParseURI("sip:112@sos.example.com")
	assert.True(t, full.Longer(bare))
	assert.False(t, bare.Longer(full))
}
