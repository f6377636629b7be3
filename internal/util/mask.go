package util

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	cstr "github.com/shopmonkeyus/go-common/string"
)

// secretFlags take a credential as their value.
var secretFlags = map[string]bool{
	"--user-token": true,
	"--token-key":  true,
}

// plainParams are url options which never carry credentials.
var plainParams = map[string]bool{
	"encoding": true,
	"sslmode":  true,
}

// MaskURL masks the credentials and query values of a database or changefeed url. The path is a
// database, file or topic name and is kept.
func MaskURL(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	var str strings.Builder
	str.WriteString(u.Scheme)
	str.WriteString("://")
	if u.User != nil {
		str.WriteString(cstr.Mask(u.User.Username()))
		if pass, ok := u.User.Password(); ok {
			str.WriteString(":")
			str.WriteString(cstr.Mask(pass))
		}
		str.WriteString("@")
	}
	str.WriteString(u.Host)
	str.WriteString(u.Path)
	var qs []string
	for k, v := range u.Query() {
		val := strings.Join(v, ",")
		if !plainParams[k] {
			val = cstr.Mask(val)
		}
		qs = append(qs, k+"="+val)
	}
	sort.Strings(qs)
	if len(qs) > 0 {
		str.WriteString("?")
		str.WriteString(strings.Join(qs, "&"))
	}
	return str.String(), nil
}

var isURL = regexp.MustCompile(`^(\w+)://`)
var isJWT = regexp.MustCompile(`^[a-zA-Z0-9-_]+\.[a-zA-Z0-9-_]+\.[a-zA-Z0-9-_]+$`)

func maskValue(flag, val string) string {
	switch {
	case secretFlags[flag], isJWT.MatchString(val):
		return cstr.Mask(val)
	case isURL.MatchString(val):
		if u, err := MaskURL(val); err == nil {
			return u
		}
		return cstr.Mask(val)
	}
	return val
}

// MaskArguments masks the values of credential flags, urls and tokens in command line arguments
// before they are logged. Both --flag value and --flag=value are handled.
func MaskArguments(args []string) []string {
	masked := make([]string, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if name, val, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(name, "--") {
			masked[i] = name + "=" + maskValue(name, val)
			continue
		}
		masked[i] = maskValue("", arg)
		if secretFlags[arg] && i+1 < len(args) {
			i++
			masked[i] = cstr.Mask(args[i])
		}
	}
	return masked
}
