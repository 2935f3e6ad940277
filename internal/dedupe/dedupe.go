// Package dedupe provides the shared singleflight group used to deduplicate
// concurrent battle creation. The queue observer delivers at-least-once, so
// the same match can be reported several times in a row; keying creation by
// battle ID ensures only one creation runs while duplicates wait.
package dedupe

import "golang.org/x/sync/singleflight"

// MatchGroup deduplicates battle creation requests keyed by battle ID.
var MatchGroup singleflight.Group
