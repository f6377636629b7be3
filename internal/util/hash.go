package util

import (
	"fmt"
	"hash/fnv"

	"github.com/cespare/xxhash/v2"
	gstr "github.com/savsgio/gotils/strconv"
)

// Hash returns the hex xxhash of the formatted values. Table fingerprints and catalog
// comparisons depend on it being stable across releases.
func Hash(vals ...any) string {
	h := xxhash.New()
	for _, v := range vals {
		h.Write(gstr.S2B(fmt.Sprintf("%+v", v)))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Modulo maps value onto [0, num) using fnv.
func Modulo(value string, num int) int {
	if num <= 1 {
		return 0
	}
	hasher := fnv.New32a()
	hasher.Write(gstr.S2B(value))
	n := int(hasher.Sum32()) % num
	if n < 0 {
		n = -n
	}
	return n
}
