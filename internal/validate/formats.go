package validate

import (
	"net"
	"net/url"

	"github.com/google/uuid"
)

// CheckHeaderFormat validates a header value against a named format:
// email, uuid, ip, or url. Empty format means presence is enough.
func CheckHeaderFormat(value, format string) bool {
	switch format {
	case "":
		return true
	case "email":
		return emailPattern.MatchString(value)
	case "uuid":
		_, err := uuid.Parse(value)
		return err == nil
	case "ip":
		return net.ParseIP(value) != nil
	case "url":
		u, err := url.Parse(value)
		return err == nil && u.Scheme != "" && u.Host != ""
	default:
		return false
	}
}
