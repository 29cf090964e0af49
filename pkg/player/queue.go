package player

// chunkItem is one entry in the playback priority queue. Sentinel items
// carry no audio and close out an utterance.
type chunkItem struct {
	index       int
	audio       []byte
	contentType string
	sentinel    bool
}

// chunkHeap is a minimal binary min-heap over chunkItem.index, giving the
// playback loop items in ascending index order regardless of arrival order.
type chunkHeap []chunkItem

func (h chunkHeap) Len() int            { return len(h) }
func (h chunkHeap) Less(i, j int) bool  { return h[i].index < h[j].index }
func (h chunkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x interface{}) { *h = append(*h, x.(chunkItem)) }
func (h *chunkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
