package util

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// JSONStringify converts any value to a JSON string.
func JSONStringify(val any) string {
	buf, _ := json.Marshal(val)
	return string(buf)
}

// Exists returns true if the filename or directory specified by fn exists.
func Exists(fn string) bool {
	if _, err := os.Stat(fn); os.IsNotExist(err) {
		return false
	}
	return true
}

// IsLocalhost returns true if the URL is localhost or 127.0.0.1 or 0.0.0.0.
func IsLocalhost(url string) bool {
	return strings.Contains(url, "localhost") || strings.Contains(url, "127.0.0.1") || strings.Contains(url, "0.0.0.0")
}

// GetFreePort asks the kernel for a free open port that is ready to use.
func GetFreePort() (port int, err error) {
	var a *net.TCPAddr
	if a, err = net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		var l *net.TCPListener
		if l, err = net.ListenTCP("tcp", a); err == nil {
			defer l.Close()
			return l.Addr().(*net.TCPAddr).Port, nil
		}
	}
	return
}

// ReadJSONObject decodes a JSON object from a file, from stdin when fn is "-" or from the
// value itself when it starts with {.
func ReadJSONObject(fn string, stdin io.Reader) (map[string]any, error) {
	var buf []byte
	var err error
	switch {
	case fn == "":
		return nil, nil
	case fn == "-":
		buf, err = io.ReadAll(stdin)
	case strings.HasPrefix(strings.TrimSpace(fn), "{"):
		buf = []byte(fn)
	default:
		buf, err = os.ReadFile(fn)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", fn, err)
	}
	var res map[string]any
	dec := json.NewDecoder(strings.NewReader(string(buf)))
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", fn, err)
	}
	return res, nil
}
