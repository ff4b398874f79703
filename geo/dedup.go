package geo

import "math"

// DedupVertices finds groups of vertices whose positions lie within epsilon of each other
// and collapses each group to a single representative, returning:
//   - remap: original unified index -> collapsed index
//   - representatives: collapsed index -> original index of the chosen medoid, the source
//     vertex downstream code should sample attributes from for that collapsed slot
//
// Candidate pairs are found via spatial quantization (bucketing positions into an
// epsilon-sized grid and comparing each vertex only against vertices in its own cell and
// the 26 cells around it), then chained into
// connected components with a BFS over the resulting adjacency graph -- the same
// queue-driven traversal the teacher uses to flatten a bone hierarchy in
// gltfTopologicalSortBones, reused here over a proximity graph instead of a parent/child
// one. Each component collapses to its medoid: the member minimizing total distance to the
// others, which keeps the representative's position representative of the whole group
// rather than an arbitrary first-seen vertex.
func DedupVertices(positions *Stream, vertexCount int, epsilon float32) (remap []uint32, representatives []int, err error) {
	if vertexCount == 0 {
		return nil, nil, nil
	}

	pts := make([][3]float32, vertexCount)
	for i := 0; i < vertexCount; i++ {
		p, err := positions.At(i)
		if err != nil {
			return nil, nil, err
		}
		pts[i] = [3]float32{p[0], p[1], p[2]}
	}

	cell := func(p [3]float32) [3]int32 {
		return [3]int32{
			int32(math.Floor(float64(p[0] / epsilon))),
			int32(math.Floor(float64(p[1] / epsilon))),
			int32(math.Floor(float64(p[2] / epsilon))),
		}
	}

	buckets := make(map[[3]int32][]int)
	for i, p := range pts {
		c := cell(p)
		buckets[c] = append(buckets[c], i)
	}

	adjacency := make([][]int, vertexCount)
	addEdge := func(a, b int) {
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	epsSq := epsilon * epsilon
	var neighborCells [27][3]int32
	for i := range vertexCount {
		c := cell(pts[i])
		n := 0
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for dz := int32(-1); dz <= 1; dz++ {
					neighborCells[n] = [3]int32{c[0] + dx, c[1] + dy, c[2] + dz}
					n++
				}
			}
		}
		for _, nc := range neighborCells {
			for _, j := range buckets[nc] {
				if j <= i {
					continue
				}
				d := distSq(pts[i], pts[j])
				if d <= epsSq {
					addEdge(i, j)
				}
			}
		}
	}

	remap = make([]uint32, vertexCount)
	visited := make([]bool, vertexCount)

	for start := 0; start < vertexCount; start++ {
		if visited[start] {
			continue
		}

		component := []int{start}
		visited[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range adjacency[cur] {
				if !visited[nb] {
					visited[nb] = true
					component = append(component, nb)
					queue = append(queue, nb)
				}
			}
		}

		newIdx := len(representatives)
		representatives = append(representatives, medoid(pts, component))
		for _, v := range component {
			remap[v] = uint32(newIdx)
		}
	}

	return remap, representatives, nil
}

func distSq(a, b [3]float32) float32 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

// medoid returns the member of component minimizing the sum of distances to every other
// member.
func medoid(pts [][3]float32, component []int) int {
	if len(component) == 1 {
		return component[0]
	}

	best := component[0]
	bestSum := float32(math.MaxFloat32)
	for _, candidate := range component {
		sum := float32(0)
		for _, other := range component {
			if other == candidate {
				continue
			}
			sum += float32(math.Sqrt(float64(distSq(pts[candidate], pts[other]))))
		}
		if sum < bestSum {
			bestSum = sum
			best = candidate
		}
	}
	return best
}
