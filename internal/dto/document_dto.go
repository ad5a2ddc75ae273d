package dto

type UploadDocumentResponse struct {
	Filename   string `json:"filename"`
	StoredAs   string `json:"stored_as"`
	ChunkCount int    `json:"chunk_count"`
}

type BatchUploadDocumentResponse struct {
	Uploaded []UploadDocumentResponse `json:"uploaded"`
	Failed   []BatchUploadFailure     `json:"failed,omitempty"`
}

type BatchUploadFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type DocumentInfoResponse struct {
	Id         int    `json:"id"`
	Filename   string `json:"filename"`
	FullPath   string `json:"full_path"`
	ChunkCount int64  `json:"chunk_count"`
}

// FilterOptionsResponse enumerates the values a client may pass as retrieval
// filters, derived from the currently ingested documents.
type FilterOptionsResponse struct {
	SourceFiles []string `json:"source_files"`
	FileTypes   []string `json:"file_types"`
}

type DeleteDocumentResponse struct {
	Filename      string `json:"filename"`
	DeletedChunks int64  `json:"deleted_chunks"`
	DeletedFiles  int    `json:"deleted_files"`
}

// PublishEmbedChunksMessage is the pubsub payload that hands one ingested
// document to the embedding consumer.
type PublishEmbedChunksMessage struct {
	Source string `json:"source"`
}
