package slack

// Export internal functions for testing
var (
	FormatTimestamp = formatTimestamp
	ParseTimestamp  = parseTimestamp
)
