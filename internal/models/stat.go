package models

type FileInfo struct {
	Mode           uint32 `json:"mode" example:"33188"`
	UID            uint32 `json:"uid" example:"1000"`
	GID            uint32 `json:"gid" example:"1000"`
	Size           int64  `json:"size" example:"1024"`
	AccessTime     int64  `json:"accessTime" example:"1718000000000"`
	ModifyTime     int64  `json:"modifyTime" example:"1718000000000"`
	IsDirectory    bool   `json:"isDirectory"`
	IsFile         bool   `json:"isFile"`
	IsSymbolicLink bool   `json:"isSymbolicLink"`
}
