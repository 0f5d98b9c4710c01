package usecase

// UserMessage is exported for testing
var UserMessage = userMessage
