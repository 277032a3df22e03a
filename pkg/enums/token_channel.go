package enums

import "fmt"

// TokenChannel identifies the out-of-band rail used to deliver an OTP.
type TokenChannel string

const (
	TokenChannelWhatsApp TokenChannel = "whatsapp"
	TokenChannelSMS      TokenChannel = "sms"
	TokenChannelEmail    TokenChannel = "email"
)

var validTokenChannels = []TokenChannel{
	TokenChannelWhatsApp,
	TokenChannelSMS,
	TokenChannelEmail,
}

// String implements fmt.Stringer.
func (t TokenChannel) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TokenChannel.
func (t TokenChannel) IsValid() bool {
	for _, candidate := range validTokenChannels {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTokenChannel converts raw input into a TokenChannel.
func ParseTokenChannel(value string) (TokenChannel, error) {
	for _, candidate := range validTokenChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid token channel %q", value)
}
