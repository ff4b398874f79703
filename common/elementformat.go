package common

import "fmt"

// ElementFormat is the closed set of per-component storage formats a VertexSource
// element may use. Mirrors the fixed set a GPU vertex pipeline understands.
type ElementFormat int

const (
	FormatUnknown ElementFormat = iota
	FormatR8Unorm
	FormatR8Snorm
	FormatR16Unorm
	FormatR16Snorm
	FormatR16Float
	FormatR32Float
	FormatR8G8Unorm
	FormatR8G8Snorm
	FormatR16G16Unorm
	FormatR16G16Snorm
	FormatR16G16Float
	FormatR32G32Float
	FormatR8G8B8Unorm
	FormatR8G8B8Snorm
	FormatR16G16B16Unorm
	FormatR16G16B16Snorm
	FormatR16G16B16Float
	FormatR32G32B32Float
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8Snorm
	FormatR16G16B16A16Unorm
	FormatR16G16B16A16Snorm
	FormatR16G16B16A16Float
	FormatR32G32B32A32Float
)

// componentInfo describes the per-component byte width and whether the format
// is a float-point encoding (as opposed to a normalized integer encoding).
type componentInfo struct {
	components int
	byteWidth  int // bytes per component
	float      bool
	normalized bool
	signed     bool
}

var formatTable = map[ElementFormat]componentInfo{
	FormatR8Unorm:           {1, 1, false, true, false},
	FormatR8Snorm:           {1, 1, false, true, true},
	FormatR16Unorm:          {1, 2, false, true, false},
	FormatR16Snorm:          {1, 2, false, true, true},
	FormatR16Float:          {1, 2, true, false, true},
	FormatR32Float:          {1, 4, true, false, true},
	FormatR8G8Unorm:         {2, 1, false, true, false},
	FormatR8G8Snorm:         {2, 1, false, true, true},
	FormatR16G16Unorm:       {2, 2, false, true, false},
	FormatR16G16Snorm:       {2, 2, false, true, true},
	FormatR16G16Float:       {2, 2, true, false, true},
	FormatR32G32Float:       {2, 4, true, false, true},
	FormatR8G8B8Unorm:       {3, 1, false, true, false},
	FormatR8G8B8Snorm:       {3, 1, false, true, true},
	FormatR16G16B16Unorm:    {3, 2, false, true, false},
	FormatR16G16B16Snorm:    {3, 2, false, true, true},
	FormatR16G16B16Float:    {3, 2, true, false, true},
	FormatR32G32B32Float:    {3, 4, true, false, true},
	FormatR8G8B8A8Unorm:     {4, 1, false, true, false},
	FormatR8G8B8A8Snorm:     {4, 1, false, true, true},
	FormatR16G16B16A16Unorm: {4, 2, false, true, false},
	FormatR16G16B16A16Snorm: {4, 2, false, true, true},
	FormatR16G16B16A16Float:  {4, 2, true, false, true},
	FormatR32G32B32A32Float: {4, 4, true, false, true},
}

// Components returns the number of components (1..4) this format packs per element.
func (f ElementFormat) Components() int {
	return formatTable[f].components
}

// ByteSize returns the total byte size of one element in this format.
func (f ElementFormat) ByteSize() int {
	info := formatTable[f]
	return info.components * info.byteWidth
}

// IsFloat reports whether this format stores floating-point components
// (F16/F32) as opposed to normalized integers.
func (f ElementFormat) IsFloat() bool {
	return formatTable[f].float
}

// Valid reports whether f is a recognised, non-zero format with 1-4 components.
func (f ElementFormat) Valid() bool {
	info, ok := formatTable[f]
	return ok && info.components >= 1 && info.components <= 4
}

func (f ElementFormat) String() string {
	switch f {
	case FormatR32Float:
		return "R32_FLOAT"
	case FormatR32G32Float:
		return "R32G32_FLOAT"
	case FormatR32G32B32Float:
		return "R32G32B32_FLOAT"
	case FormatR32G32B32A32Float:
		return "R32G32B32A32_FLOAT"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	default:
		return fmt.Sprintf("ElementFormat(%d)", int(f))
	}
}

// ProcessingFlags are optional per-stream adjustments applied by the geometry
// unifier while binding a VertexSourceData adapter (§3 VertexSource).
type ProcessingFlags uint8

const (
	FlipV ProcessingFlags = 1 << iota
	FlipBitangent
	FlipTangentHandedness
	Renormalize
)

// FormatHint carries format-independent interpretation hints for a stream.
type FormatHint uint8

const (
	HintNone FormatHint = 0
	IsColor  FormatHint = 1 << 0
)
