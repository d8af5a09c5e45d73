package routing

import "strings"

// Normalize derives the dispatch key from a raw request URI.
//
//	/api?x=1&y=http://a/b  -> /api
//	/api/extra?x=1         -> /api/extra
//	/res/load.js           -> /res
//	/gameIndex             -> /gameIndex
//
// The query check runs first: a query string may itself contain slashes.
// A path with both a second segment and a query therefore keeps its full
// path, so /res/app.js?v=2 yields /res/app.js and misses a /res entry.
func Normalize(route string) string {
	if i := strings.IndexByte(route, '?'); i >= 0 {
		return route[:i]
	}
	if len(route) > 1 {
		if i := strings.IndexByte(route[1:], '/'); i >= 0 {
			return route[:i+1]
		}
	}
	return route
}
