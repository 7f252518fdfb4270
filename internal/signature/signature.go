// Package signature derives a compact fingerprint of the drawing surface
// from element identities and revisions. Two equal signatures mean nothing
// was added, removed or edited between them.
package signature

import (
	"strconv"
	"strings"

	"github.com/JaimeStill/mentor/internal/capability"
)

// Compute returns the signature of elements in surface order, formatted as
// "id:revision" pairs joined by commas. An empty surface yields "".
func Compute(elements []capability.Element) string {
	if len(elements) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range elements {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.ID)
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(e.Revision, 10))
	}
	return b.String()
}
