package pattern

import (
	"net/url"
	"strings"
)

// minPathKeyLen is the minimum length of a two-segment path shape. Shorter
// shapes ("/a/b/") carry no signal and flood the store.
const minPathKeyLen = 5

// minQueryNameLen filters out one- and two-letter query parameter names.
const minQueryNameLen = 2

// DeriveKeys produces candidate pattern keys from a parsed URL.
//
// A sliding window over adjacent path-segment pairs emits one path key per
// pair. Derivation intentionally overgenerates: low-value keys are pruned
// later by maintenance cleanup, not filtered here. Discovery favors
// recall, cleanup favors precision.
func DeriveKeys(u *url.URL, targetDomain func(host string) bool) []string {
	var keys []string

	segs := splitPath(u.Path)
	for i := 0; i+1 < len(segs); i++ {
		shape := "/" + segs[i] + "/" + segs[i+1] + "/"
		if len(shape) > minPathKeyLen {
			keys = append(keys, KindPath+":"+shape)
		}
	}

	for name := range u.Query() {
		if len(name) > minQueryNameLen {
			keys = append(keys, KindQuery+":"+name)
		}
	}

	if host := u.Hostname(); host != "" && targetDomain != nil && targetDomain(host) {
		keys = append(keys, KindDomain+":"+host)
	}

	return keys
}

// SplitKey returns the kind and shape halves of a pattern key.
func SplitKey(key string) (kind, shape string) {
	kind, shape, _ = strings.Cut(key, ":")
	return kind, shape
}

func splitPath(p string) []string {
	var segs []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
