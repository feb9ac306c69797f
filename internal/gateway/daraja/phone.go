package daraja

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"farepay/internal/domain"
)

// EastAfricaTime is the zone Daraja uses for request timestamps and TransactionDate.
var EastAfricaTime = time.FixedZone("EAT", 3*60*60)

const timestampLayout = "20060102150405"

func Timestamp(t time.Time) string {
	return t.In(EastAfricaTime).Format(timestampLayout)
}

// Password is base64(shortcode + passkey + timestamp) as the STK push API expects.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// NormalizePhone accepts 07XXXXXXXX, 01XXXXXXXX, +2547XXXXXXXX, 2547XXXXXXXX and the
// bare nine-digit form, and returns the 254XXXXXXXXX form the provider requires.
func NormalizePhone(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	switch {
	case len(s) == 10 && strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	case len(s) == 9:
		s = "254" + s
	}

	if len(s) != 12 || !strings.HasPrefix(s, "254") {
		return "", fmt.Errorf("%w: payer contact %q is not a Kenyan mobile number", domain.ErrInvalidRequest, raw)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: payer contact %q is not a Kenyan mobile number", domain.ErrInvalidRequest, raw)
		}
	}
	if s[3] != '7' && s[3] != '1' {
		return "", fmt.Errorf("%w: payer contact %q is not a Kenyan mobile number", domain.ErrInvalidRequest, raw)
	}
	return s, nil
}
