package api

import "time"

// FileInfo is the response of the stat endpoint. Attributes no backend
// could provide are omitted.
type FileInfo struct {
	Name         string     `json:"name"`
	Size         int64      `json:"size"`
	AccessedTime *time.Time `json:"accessed_time,omitempty"`
	CreatedTime  *time.Time `json:"created_time,omitempty"`
	ModifiedTime *time.Time `json:"modified_time,omitempty"`
	URL          string     `json:"url,omitempty"`
}

// Listing is the response of the list endpoint.
type Listing struct {
	Directories []string `json:"directories"`
	Files       []string `json:"files"`
}

// NameResponse carries a file name: the one content was stored under, a
// normalized name or a negotiated free name.
type NameResponse struct {
	Name string `json:"name"`
}

type URLResponse struct {
	URL string `json:"url"`
}

type PathResponse struct {
	Path string `json:"path"`
}

// StatusResponse is returned by the health and drain endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}
