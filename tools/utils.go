package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// userAccountControl bits used when creating and reading accounts.
const (
	UACAccountDisable    = 0x0002
	UACPasswdNotReqd     = 0x0020
	UACNormalAccount     = 0x0200
	UACDontExpirePasswd  = 0x10000
	UACPasswordExpired   = 0x800000
	SecretMask           = "********"
	defaultUACForNewUser = UACNormalAccount
)

// FormatGUID converts a raw objectGUID []byte into a standard Microsoft GUID string
func FormatGUID(b []byte) string {
	if len(b) != 16 {
		return ""
	}
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	)
}

// IsAccountEnabled reports whether the ACCOUNTDISABLE bit is clear. Unparseable values count as disabled.
func IsAccountEnabled(uac string) bool {
	val, err := strconv.Atoi(strings.TrimSpace(uac))
	if err != nil {
		return false
	}
	return val&UACAccountDisable == 0
}

// NewAccountUAC is the userAccountControl value for a freshly provisioned, enabled account.
func NewAccountUAC() string {
	return strconv.Itoa(defaultUACForNewUser)
}

func DecodeUserAccountControlFlags(uac string) []string {
	flags := map[int]string{
		0x0001:              "SCRIPT",
		UACAccountDisable:   "ACCOUNTDISABLE",
		0x0008:              "HOMEDIR_REQUIRED",
		0x0010:              "LOCKOUT",
		UACPasswdNotReqd:    "PASSWD_NOTREQD",
		0x0080:              "ENCRYPTED_TEXT_PASSWORD_ALLOWED",
		UACNormalAccount:    "NORMAL_ACCOUNT",
		UACDontExpirePasswd: "DONT_EXPIRE_PASSWORD",
		0x40000:             "SMARTCARD_REQUIRED",
		UACPasswordExpired:  "PASSWORD_EXPIRED",
	}

	var activeFlags []string
	val, err := strconv.Atoi(uac)
	if err != nil {
		return []string{"invalid"}
	}

	for bit, label := range flags {
		if val&bit != 0 {
			activeFlags = append(activeFlags, label)
		}
	}

	return activeFlags
}

var secretKeys = []string{"password", "secret", "unicodepwd", "bind_secret", "bindsecret", "token"}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// SanitizeFields returns a copy of fields with every secret-bearing value masked.
func SanitizeFields(fields logrus.Fields) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		if isSecretKey(k) {
			out[k] = SecretMask
			continue
		}
		out[k] = v
	}
	return out
}

// Fields is shorthand for Log.WithFields(SanitizeFields(fields)).
func Fields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(SanitizeFields(fields))
}
