package overlay

import "sort"

// KDTree indexes a set of face bounding boxes for nearest-face
// seeding. At each level it splits on the widest axis of the combined
// extent of the boxes in that subtree.
type KDTree struct {
	root *kdNode
}

type kdNode struct {
	faceIdx     int
	box         BBox
	left, right *kdNode
}

// BuildKDTree indexes the given face bounding boxes, keyed by their
// position in faceBoxes (the caller's face index).
func BuildKDTree(faceBoxes []BBox) *KDTree {
	idx := make([]int, len(faceBoxes))
	for i := range idx {
		idx[i] = i
	}
	return &KDTree{root: buildKD(faceBoxes, idx)}
}

func buildKD(boxes []BBox, idx []int) *kdNode {
	if len(idx) == 0 {
		return nil
	}
	if len(idx) == 1 {
		return &kdNode{faceIdx: idx[0], box: boxes[idx[0]]}
	}

	axis := widestAxis(boxes, idx)
	sort.Slice(idx, func(i, j int) bool {
		return centerAxis(boxes[idx[i]], axis) < centerAxis(boxes[idx[j]], axis)
	})
	mid := len(idx) / 2
	node := &kdNode{faceIdx: idx[mid], box: boxes[idx[mid]]}
	node.left = buildKD(boxes, idx[:mid])
	node.right = buildKD(boxes, idx[mid+1:])
	return node
}

func centerAxis(b BBox, axis int) float64 {
	c := b.Center()
	switch axis {
	case 0:
		return c.X
	case 1:
		return c.Y
	default:
		return c.Z
	}
}

func widestAxis(boxes []BBox, idx []int) int {
	overall := boxes[idx[0]]
	for _, i := range idx[1:] {
		overall.Min.X = minf(overall.Min.X, boxes[i].Min.X)
		overall.Min.Y = minf(overall.Min.Y, boxes[i].Min.Y)
		overall.Min.Z = minf(overall.Min.Z, boxes[i].Min.Z)
		overall.Max.X = maxf(overall.Max.X, boxes[i].Max.X)
		overall.Max.Y = maxf(overall.Max.Y, boxes[i].Max.Y)
		overall.Max.Z = maxf(overall.Max.Z, boxes[i].Max.Z)
	}
	dx := overall.Max.X - overall.Min.X
	dy := overall.Max.Y - overall.Min.Y
	dz := overall.Max.Z - overall.Min.Z
	if dx >= dy && dx >= dz {
		return 0
	}
	if dy >= dz {
		return 1
	}
	return 2
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// NearestFace returns the index (as given to BuildKDTree) of the face
// whose bounding box is closest to p.
func (t *KDTree) NearestFace(p Point) (int, bool) {
	if t.root == nil {
		return 0, false
	}
	best := -1
	bestDist := -1.0
	var walk func(n *kdNode)
	walk = func(n *kdNode) {
		if n == nil {
			return
		}
		d := distToBox(p, n.box)
		if best == -1 || d < bestDist {
			best, bestDist = n.faceIdx, d
		}
		// Both children may hold the true nearest box since splitting is
		// by centroid, not a strict spatial partition bound, so visit
		// both rather than pruning on distance to the split point.
		walk(n.left)
		walk(n.right)
	}
	walk(t.root)
	return best, best != -1
}
