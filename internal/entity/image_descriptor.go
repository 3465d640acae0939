package entity

import "fmt"

// ImageDescriptor identifies one image to fetch: the group it belongs to, its
// 1-based position inside that group and the absolute URL it is served from.
type ImageDescriptor struct {
	Group     string
	Index     int
	SourceURL string
}

// FileName is the name the image is stored under inside its group directory.
func (d ImageDescriptor) FileName() string {
	return fmt.Sprintf("%03d.png", d.Index)
}

func (d ImageDescriptor) String() string {
	return fmt.Sprintf("ImageDescriptor(%s-%03d)", d.Group, d.Index)
}
