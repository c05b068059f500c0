package outbound

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zapdesk/pkg/entities"
	waTypes "go.mau.fi/whatsmeow/types"
)

var nonDigitRe = regexp.MustCompile(`[^\d+]`)

// ResolveDestination turns a contact into the canonical JID to dispatch
// to: groups keep their group JID, legacy @c.us identifiers are
// rewritten to the canonical user server, and bare phone numbers are
// normalized first.
func ResolveDestination(contact *entities.Contact) (waTypes.JID, error) {
	if contact.RemoteJID != "" {
		raw := contact.RemoteJID
		if strings.HasSuffix(raw, "@c.us") {
			raw = strings.TrimSuffix(raw, "@c.us") + "@" + waTypes.DefaultUserServer
		}
		jid, err := waTypes.ParseJID(raw)
		if err == nil && !jid.IsEmpty() {
			return jid, nil
		}
	}

	if contact.IsGroup {
		return waTypes.NewJID(contact.Phone, waTypes.GroupServer), nil
	}

	phone, err := NormalizePhone(contact.Phone)
	if err != nil {
		return waTypes.JID{}, err
	}
	return waTypes.NewJID(phone, waTypes.DefaultUserServer), nil
}

// NormalizePhone strips formatting characters and validates the bare
// number, mirroring what the provider expects in a user JID.
func NormalizePhone(phoneNumber string) (string, error) {
	cleanPhone := nonDigitRe.ReplaceAllString(phoneNumber, "")
	cleanPhone = strings.TrimPrefix(cleanPhone, "+")

	if len(cleanPhone) < 10 {
		return "", fmt.Errorf("invalid phone number: too short")
	}
	return cleanPhone, nil
}
