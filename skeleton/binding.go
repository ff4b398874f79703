package skeleton

import "github.com/Carmen-Shannon/skingeo-core/common"

// UnboundSlot marks a binding entry with no match on the target interface (the spec's
// "~0" sentinel).
const UnboundSlot int32 = -1

// AnimationSetBinding is the result of brute-force name-matching an AnimationSet's named
// output interface against a SkeletonMachine's input interface. Built once per
// (AnimationSet, SkeletonMachine) pair and reused across every Sample call.
type AnimationSetBinding struct {
	slots []int32 // indexed by AnimationSet driver ParamIndex
}

// Slot returns the skeleton parameter slot bound to animation-set output paramIndex, or
// UnboundSlot if unmatched.
func (b *AnimationSetBinding) Slot(paramIndex int32) int32 {
	if int(paramIndex) < 0 || int(paramIndex) >= len(b.slots) {
		return UnboundSlot
	}
	return b.slots[paramIndex]
}

// BindAnimationSet matches set.OutputNames against the skeleton's input interface by name.
func BindAnimationSet(set *AnimationSet, skeletonInput []Parameter) *AnimationSetBinding {
	return &AnimationSetBinding{slots: bindByName(set.OutputNames, parameterNames(skeletonInput))}
}

// SkeletonBinding is the analogous name-match between a SkeletonMachine's output interface
// and a command stream's input interface (§4.4 step 1: `SkeletonBinding(skeleton.output_interface,
// scaffold.command_stream.input_interface)`).
type SkeletonBinding struct {
	slots []int32 // indexed by skeleton output name index
}

// Slot returns the command-stream input slot bound to skeleton output outputIndex, or
// UnboundSlot if unmatched.
func (b *SkeletonBinding) Slot(outputIndex int32) int32 {
	if int(outputIndex) < 0 || int(outputIndex) >= len(b.slots) {
		return UnboundSlot
	}
	return b.slots[outputIndex]
}

// BindSkeleton matches a skeleton's output names against a command stream's input
// interface by name.
func BindSkeleton(skeletonOutputNames []string, commandStreamInput []Parameter) *SkeletonBinding {
	return &SkeletonBinding{slots: bindByName(skeletonOutputNames, parameterNames(commandStreamInput))}
}

func parameterNames(params []Parameter) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// bindByName does the brute-force name match shared by both binding constructors: for each
// source name, find the target index with the same name, or UnboundSlot if none matches.
// Unmatched entries produce a debug warning, per §4.3.
func bindByName(source, target []string) []int32 {
	targetIndex := make(map[string]int32, len(target))
	for i, name := range target {
		targetIndex[name] = int32(i)
	}

	slots := make([]int32, len(source))
	for i, name := range source {
		if idx, ok := targetIndex[name]; ok {
			slots[i] = idx
		} else {
			slots[i] = UnboundSlot
			common.Default.Debug("skeleton binding: no match for %q in target interface", name)
		}
	}
	return slots
}
