package models

// Entry is one item of a remote directory listing.
type Entry struct {
	Name       string `json:"name" example:"notes.txt"`
	Type       string `json:"type" example:"file"`
	Size       int64  `json:"size" example:"1024"`
	ModifyTime int64  `json:"modifyTime" example:"1718000000000"`
	Rights     Rights `json:"rights"`
	Owner      uint32 `json:"owner" example:"1000"`
	Group      uint32 `json:"group" example:"1000"`
	Path       string `json:"path" example:"/home/alice/notes.txt"`
}

// Rights holds the rwx triplets of a permission mode.
type Rights struct {
	User  string `json:"user" example:"rw-"`
	Group string `json:"group" example:"r--"`
	Other string `json:"other" example:"r--"`
}

const (
	EntryTypeDir  = "dir"
	EntryTypeFile = "file"
)
