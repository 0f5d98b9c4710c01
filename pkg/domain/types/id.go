package types

import "regexp"

// idPattern restricts configured identifiers (integration and team ids) to lowercase slugs
var idPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
