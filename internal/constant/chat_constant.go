package constant

import "time"

// Persisted author tags in chat_history.role.
const (
	ChatHistoryRoleHuman = "human"
	ChatHistoryRoleAI    = "ai"
)

const (
	TableSessions    = "sessions"
	TableDocuments   = "documents"
	TableChatHistory = "chat_history"
)

const (
	// UnnamedDocumentLabel stands in for a document whose metadata has no filename.
	UnnamedDocumentLabel = "Unnamed PDF"
	DescriptionSeparator = ", "
	DocumentMetadataName = "filename"
	SessionLabelLayout   = "Jan 2, 2006, 3:04:05 PM"
)

const (
	UploadFormField        = "files"
	AllowedUploadExtension = ".pdf"
)

// Watermill topics.
const (
	TopicWorkspaceChanged = "workspace.changed"
)

const (
	DefaultGatewayTimeout  = 30 * time.Second
	DefaultDescriptionTTL  = 10 * time.Minute
	DescriptionCachePurge  = 20 * time.Minute
	DescriptionCachePrefix = "docchat:description:"
)
