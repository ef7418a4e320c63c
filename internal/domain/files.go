package domain

// FilePreview is one candidate file inside a torrent or debrid listing.
type FilePreview struct {
	Index       int    `json:"index"`
	DisplayPath string `json:"displayPath"`
	Path        string `json:"path"`
	FileID      string `json:"fileId,omitempty"`
	Length      int64  `json:"length,omitempty"`
	IsLikely    bool   `json:"isLikely"`
}
