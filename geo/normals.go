package geo

import "math"

// GenerateNormals computes smooth per-vertex normals from triangle topology when a source
// mesh carries no NORMAL stream. Face normals (cross product of two edges, length
// proportional to triangle area) are accumulated per vertex and normalized, producing
// smooth shading across shared vertices. Ported from the teacher's generateNormals,
// adapted to read positions through a Stream rather than a GPUSkinnedVertex slice.
func GenerateNormals(positions *Stream, indices []uint32, vertexCount int) ([][3]float32, error) {
	accum := make([][3]float32, vertexCount)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= vertexCount || int(i1) >= vertexCount || int(i2) >= vertexCount {
			continue
		}

		p0, err := positions.At(int(i0))
		if err != nil {
			return nil, err
		}
		p1, err := positions.At(int(i1))
		if err != nil {
			return nil, err
		}
		p2, err := positions.At(int(i2))
		if err != nil {
			return nil, err
		}

		edge1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		edge2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}

		faceNormal := [3]float32{
			edge1[1]*edge2[2] - edge1[2]*edge2[1],
			edge1[2]*edge2[0] - edge1[0]*edge2[2],
			edge1[0]*edge2[1] - edge1[1]*edge2[0],
		}

		for _, idx := range []uint32{i0, i1, i2} {
			accum[idx][0] += faceNormal[0]
			accum[idx][1] += faceNormal[1]
			accum[idx][2] += faceNormal[2]
		}
	}

	out := make([][3]float32, vertexCount)
	for i := 0; i < vertexCount; i++ {
		length := float32(math.Sqrt(float64(accum[i][0]*accum[i][0] + accum[i][1]*accum[i][1] + accum[i][2]*accum[i][2])))
		if length < 1e-6 {
			out[i] = [3]float32{0, 1, 0}
			continue
		}
		invLen := 1.0 / length
		out[i] = [3]float32{accum[i][0] * invLen, accum[i][1] * invLen, accum[i][2] * invLen}
	}

	return out, nil
}

// GenerateTangents computes per-vertex tangents using the UV-gradient method: per triangle,
// the tangent/bitangent are derived from UV coordinate differences, accumulated per vertex,
// then Gram-Schmidt orthonormalized against the vertex normal. The W component carries
// handedness (+-1), resolved from the sign of dot(cross(N, T), B). Ported from the
// teacher's generateTangents.
func GenerateTangents(positions, texcoords *Stream, normals [][3]float32, indices []uint32, vertexCount int) ([][4]float32, error) {
	tan := make([][3]float32, vertexCount)
	btan := make([][3]float32, vertexCount)

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		if int(i0) >= vertexCount || int(i1) >= vertexCount || int(i2) >= vertexCount {
			continue
		}

		p0, err := positions.At(int(i0))
		if err != nil {
			return nil, err
		}
		p1, err := positions.At(int(i1))
		if err != nil {
			return nil, err
		}
		p2, err := positions.At(int(i2))
		if err != nil {
			return nil, err
		}
		uv0, err := texcoords.At(int(i0))
		if err != nil {
			return nil, err
		}
		uv1, err := texcoords.At(int(i1))
		if err != nil {
			return nil, err
		}
		uv2, err := texcoords.At(int(i2))
		if err != nil {
			return nil, err
		}

		edge1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		edge2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}

		duv1 := [2]float32{uv1[0] - uv0[0], uv1[1] - uv0[1]}
		duv2 := [2]float32{uv2[0] - uv0[0], uv2[1] - uv0[1]}

		det := duv1[0]*duv2[1] - duv1[1]*duv2[0]
		if det == 0 {
			continue
		}
		invDet := 1.0 / det

		t := [3]float32{
			invDet * (duv2[1]*edge1[0] - duv1[1]*edge2[0]),
			invDet * (duv2[1]*edge1[1] - duv1[1]*edge2[1]),
			invDet * (duv2[1]*edge1[2] - duv1[1]*edge2[2]),
		}
		b := [3]float32{
			invDet * (-duv2[0]*edge1[0] + duv1[0]*edge2[0]),
			invDet * (-duv2[0]*edge1[1] + duv1[0]*edge2[1]),
			invDet * (-duv2[0]*edge1[2] + duv1[0]*edge2[2]),
		}

		for _, idx := range []uint32{i0, i1, i2} {
			tan[idx][0] += t[0]
			tan[idx][1] += t[1]
			tan[idx][2] += t[2]
			btan[idx][0] += b[0]
			btan[idx][1] += b[1]
			btan[idx][2] += b[2]
		}
	}

	out := make([][4]float32, vertexCount)
	for i := 0; i < vertexCount; i++ {
		normal := normals[i]
		t := tan[i]

		nDotT := normal[0]*t[0] + normal[1]*t[1] + normal[2]*t[2]
		ortho := [3]float32{t[0] - normal[0]*nDotT, t[1] - normal[1]*nDotT, t[2] - normal[2]*nDotT}

		length := float32(math.Sqrt(float64(ortho[0]*ortho[0] + ortho[1]*ortho[1] + ortho[2]*ortho[2])))
		if length < 1e-6 {
			out[i] = [4]float32{1, 0, 0, 1}
			continue
		}
		invLen := 1.0 / length
		ortho[0] *= invLen
		ortho[1] *= invLen
		ortho[2] *= invLen

		cross := [3]float32{
			normal[1]*ortho[2] - normal[2]*ortho[1],
			normal[2]*ortho[0] - normal[0]*ortho[2],
			normal[0]*ortho[1] - normal[1]*ortho[0],
		}
		w := float32(1.0)
		if cross[0]*btan[i][0]+cross[1]*btan[i][1]+cross[2]*btan[i][2] < 0 {
			w = -1.0
		}

		out[i] = [4]float32{ortho[0], ortho[1], ortho[2], w}
	}

	return out, nil
}
