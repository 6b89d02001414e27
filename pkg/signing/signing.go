// Package signing implements the keyed request digest required by the
// Varinode API. The digest covers only the base parameter set (appid, format,
// method), not the full call payload.
package signing

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
)

// Sign computes the request signature: an MD5 digest over the "key=value"
// concatenation of params in ascending key order, with the signing secret
// appended as a suffix.
func Sign(secret string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var s string
	for _, k := range keys {
		s += k + "=" + params[k]
	}
	s += secret

	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
