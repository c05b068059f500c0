package outbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/entities"
)

func TestResolveDestination(t *testing.T) {
	t.Run("remote jid is used as-is", func(t *testing.T) {
		contact := &entities.Contact{RemoteJID: "5511999998888@s.whatsapp.net", Phone: "ignored"}
		jid, err := ResolveDestination(contact)
		require.NoError(t, err)
		assert.Equal(t, "5511999998888@s.whatsapp.net", jid.String())
	})

	t.Run("legacy c.us server is rewritten", func(t *testing.T) {
		contact := &entities.Contact{RemoteJID: "5511999998888@c.us"}
		jid, err := ResolveDestination(contact)
		require.NoError(t, err)
		assert.Equal(t, "5511999998888@s.whatsapp.net", jid.String())
	})

	t.Run("group contact targets the group server", func(t *testing.T) {
		contact := &entities.Contact{Phone: "120363041234567890", IsGroup: true}
		jid, err := ResolveDestination(contact)
		require.NoError(t, err)
		assert.Equal(t, "120363041234567890@g.us", jid.String())
	})

	t.Run("bare phone is normalized", func(t *testing.T) {
		contact := &entities.Contact{Phone: "+55 (11) 99999-8888"}
		jid, err := ResolveDestination(contact)
		require.NoError(t, err)
		assert.Equal(t, "5511999998888@s.whatsapp.net", jid.String())
	})

	t.Run("too short phone fails", func(t *testing.T) {
		contact := &entities.Contact{Phone: "12345"}
		_, err := ResolveDestination(contact)
		assert.Error(t, err)
	})
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"+55 (11) 99999-8888", "5511999998888", false},
		{"5511999998888", "5511999998888", false},
		{"123", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePhone(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got)
	}
}
