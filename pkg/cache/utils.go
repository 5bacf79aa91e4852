package cache

import (
	"fmt"
	"strings"
)

// GenerateKeyWithParams builds a colon-separated cache key from a prefix
// and any mix of parameter values.
func GenerateKeyWithParams(prefix string, params ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, param := range params {
		fmt.Fprintf(&b, ":%v", param)
	}
	return b.String()
}
