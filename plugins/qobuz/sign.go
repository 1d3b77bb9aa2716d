package qobuz

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// requestSignature signs a call to object/method. Parameters are concatenated
// as key+value in key order, then the timestamp and the app secret are appended.
func requestSignature(object, method string, params map[string]string, ts, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(object)
	b.WriteString(method)
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(params[key])
	}
	b.WriteString(ts)
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
