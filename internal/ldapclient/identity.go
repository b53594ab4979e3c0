package ldapclient

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// MinSecretLength is the shortest password the directory accepts for unicodePwd.
const MinSecretLength = 7

// FormatBindIdentity turns an operator-entered account name into the identity used for Bind.
func FormatBindIdentity(cfg Config, rawAccount string) string {
	account := strings.TrimSpace(rawAccount)
	if LooksLikeDN(account) {
		return account
	}

	if cfg.AuthFormat == AuthFormatDN {
		name := stripDomain(account)
		container := cfg.BaseDN
		if cfg.BindContainer != "" {
			container = cfg.underBase(cfg.BindContainer, cfg.BindContainer)
		}
		return fmt.Sprintf("CN=%s,%s", EscapeDNValue(name), container)
	}

	if strings.Contains(account, "@") {
		return account
	}
	if domain := cfg.DomainName(); domain != "" {
		return account + "@" + domain
	}
	return account
}

// LooksLikeDN reports whether s starts with the CN= relative-name prefix.
func LooksLikeDN(s string) bool {
	return len(s) >= 3 && strings.EqualFold(s[:3], "CN=")
}

func stripDomain(account string) string {
	if i := strings.Index(account, "@"); i >= 0 {
		account = account[:i]
	}
	if i := strings.LastIndex(account, `\`); i >= 0 {
		account = account[i+1:]
	}
	return account
}

// EncodeSecret produces the unicodePwd value: the password in double quotes, UTF-16LE encoded.
func EncodeSecret(plain string) ([]byte, error) {
	if plain == "" {
		return nil, NewValidationError("encode secret", "password is required")
	}
	if utf8.RuneCountInString(plain) < MinSecretLength {
		return nil, NewValidationError("encode secret", fmt.Sprintf("password must be at least %d characters", MinSecretLength))
	}
	encoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	encoded, err := encoder.String(`"` + plain + `"`)
	if err != nil {
		return nil, NewValidationError("encode secret", "password contains characters that cannot be encoded")
	}
	return []byte(encoded), nil
}
