package queue

import "github.com/Papyszoo/ImmichVR-sub001/pkg/store/models"

// Priority bands: photos claim before videos, and within a kind smaller
// files claim first. Lower values are claimed earlier.
const (
	photoPriorityBase = 1
	videoPriorityBase = 101

	// sizeBucketBytes is the file-size granularity of the priority offset.
	sizeBucketBytes = 100 << 20 // 100 MB

	maxSizeOffset = 99
)

// PriorityFor computes the queue priority for a media item. Photos land in
// [1,100] and videos in [101,200]; the offset inside the band grows with
// file size so smaller files are claimed first.
func PriorityFor(kind models.MediaKind, sizeBytes int64) int {
	base := photoPriorityBase
	if kind == models.MediaKindVideo {
		base = videoPriorityBase
	}

	offset := int(sizeBytes * 100 / sizeBucketBytes)
	if offset > maxSizeOffset {
		offset = maxSizeOffset
	}
	if offset < 0 {
		offset = 0
	}
	return base + offset
}
