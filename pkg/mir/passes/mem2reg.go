// Copyright Cairo-M Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package passes transforms a pkg/mir.Function in place: Mem2RegSSA promotes
// non-escaping single-slot allocations to pure SSA values, SROA scalarizes
// in-register aggregate lifetimes, LowerAggregates converts whatever
// survives both into explicit frame storage, and Cleanup forwards stores to
// loads and deletes dead instructions. Passes run in that order; each
// assumes the function it receives satisfies mir.ValidateFunction.
package passes

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/cairo-m/cairom/pkg/mir"
	"github.com/cairo-m/cairom/pkg/util/collection/stack"
)

// domTree is the dominator tree and dominance-frontier sets of one
// function's CFG, computed once per Mem2RegSSA call and consulted for both
// phi placement and renaming order.
type domTree struct {
	order    []mir.BlockID
	rpoIndex map[mir.BlockID]int
	idom     map[mir.BlockID]mir.BlockID
	children map[mir.BlockID][]mir.BlockID
	df       map[mir.BlockID]*bitset.BitSet
}

// reversePostorder walks the CFG depth-first from the entry block and
// returns blocks in reverse-postorder, the iteration order the
// Cooper-Harvey-Kennedy dominance algorithm requires to converge in one or
// two passes.
func reversePostorder(fn *mir.Function) ([]mir.BlockID, map[mir.BlockID]int) {
	visited := map[mir.BlockID]bool{}

	var postorder []mir.BlockID

	var visit func(b mir.BlockID)
	visit = func(b mir.BlockID) {
		if visited[b] {
			return
		}

		visited[b] = true

		term := fn.Block(b).Terminator
		if term != nil {
			for _, succ := range term.Successors() {
				visit(succ)
			}
		}

		postorder = append(postorder, b)
	}
	visit(fn.EntryID)

	order := make([]mir.BlockID, len(postorder))
	for i, b := range postorder {
		order[len(postorder)-1-i] = b
	}

	rpoIndex := make(map[mir.BlockID]int, len(order))
	for i, b := range order {
		rpoIndex[b] = i
	}

	return order, rpoIndex
}

func computeIdom(fn *mir.Function, order []mir.BlockID, rpoIndex map[mir.BlockID]int) map[mir.BlockID]mir.BlockID {
	idom := map[mir.BlockID]mir.BlockID{fn.EntryID: fn.EntryID}

	changed := true
	for changed {
		changed = false

		for _, b := range order {
			if b == fn.EntryID {
				continue
			}

			var newIdom mir.BlockID

			first := true

			for _, p := range fn.Block(b).Predecessors {
				if _, ok := idom[p]; !ok {
					continue // predecessor not processed yet this pass
				}

				if first {
					newIdom = p
					first = false

					continue
				}

				newIdom = intersect(p, newIdom, idom, rpoIndex)
			}

			if first {
				continue // unreachable in this pass; entry dominates everything eventually
			}

			if cur, ok := idom[b]; !ok || cur != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	return idom
}

func intersect(a, b mir.BlockID, idom map[mir.BlockID]mir.BlockID, rpoIndex map[mir.BlockID]int) mir.BlockID {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}

		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}

	return a
}

// iteratedDominanceFrontier returns the iterated dominance frontier of
// blocks: the fixed point of repeatedly unioning in DF(b) for every block b
// already in the result, the standard phi-placement set.
func iteratedDominanceFrontier(order []mir.BlockID, blocks []mir.BlockID, df map[mir.BlockID]*bitset.BitSet) []mir.BlockID {
	indexOf := make(map[mir.BlockID]int, len(order))
	for i, b := range order {
		indexOf[b] = i
	}

	in := bitset.New(uint(len(order)))     // blocks ever queued on the worklist
	placed := bitset.New(uint(len(order))) // blocks already in result

	var worklist []mir.BlockID

	for _, b := range blocks {
		idx := uint(indexOf[b])
		if !in.Test(idx) {
			in.Set(idx)

			worklist = append(worklist, b)
		}
	}

	var result []mir.BlockID

	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		frontier := df[b]
		if frontier == nil {
			continue
		}

		for i, e := frontier.NextSet(0); e; i, e = frontier.NextSet(i + 1) {
			fb := order[i]
			if placed.Test(i) {
				continue
			}

			placed.Set(i)
			result = append(result, fb)

			if !in.Test(i) {
				in.Set(i)
				worklist = append(worklist, fb)
			}
		}
	}

	return result
}

// candidate is one FrameAlloc the pass is considering for promotion.
type candidate struct {
	block mir.BlockID
	ty    mir.Type
}

// Mem2RegSSA eliminates every non-escaping, single-slot FrameAlloc in fn,
// replacing its Load/Store/GetElementPtr chain with pure SSA values and phi
// nodes inserted at the iterated dominance frontier of its store blocks.
// Multi-slot allocations and allocations whose address escapes are left
// untouched; see DESIGN.md Open Question log for why sub-slot promotion
// (u32/struct locals) is out of scope for this pass.
func Mem2RegSSA(fn *mir.Function, layout *mir.DataLayout) {
	candidates := collectCandidates(fn, layout)
	if len(candidates) == 0 {
		return
	}

	gepIdentity := identityGEPs(fn, candidates)
	escaping := computeEscaping(fn, candidates, gepIdentity)

	promotable := map[mir.ValueID]mir.Type{}

	for id, c := range candidates {
		if !escaping[id] {
			promotable[id] = c.ty
		}
	}

	if len(promotable) == 0 {
		return
	}

	tree := buildDomTree(fn)

	storeBlocks := map[mir.ValueID][]mir.BlockID{}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			st, ok := instr.(*mir.Store)
			if !ok {
				continue
			}

			allocID, ok := resolveAllocAddress(st.Address, promotable, gepIdentity)
			if !ok {
				continue
			}

			storeBlocks[allocID] = append(storeBlocks[allocID], b.ID)
		}
	}

	phiDest := map[mir.ValueID]map[mir.BlockID]mir.ValueID{}

	for allocID, blocks := range storeBlocks {
		ty := promotable[allocID]
		for _, b := range iteratedDominanceFrontier(tree.order, blocks, tree.df) {
			dest := fn.NewValue(ty)
			fn.AppendPhi(b, &mir.Phi{DestID: dest, Ty: ty})

			if phiDest[allocID] == nil {
				phiDest[allocID] = map[mir.BlockID]mir.ValueID{}
			}

			phiDest[allocID][b] = dest
		}
	}

	r := &renamer{
		fn:          fn,
		promotable:  promotable,
		gepIdentity: gepIdentity,
		phiDest:     phiDest,
		stacks:      map[mir.ValueID]*stack.Stack[mir.Value]{},
		tree:        tree,
	}
	r.visit(fn.EntryID)

	stripPromotedInstructions(fn, promotable, gepIdentity)
	dropEmptyPhis(fn)
}

// buildDomTree computes the dominator tree and dominance-frontier sets of
// fn's CFG, reading predecessor links off each Block directly.
func buildDomTree(fn *mir.Function) *domTree {
	order, rpoIndex := reversePostorder(fn)
	idom := computeIdom(fn, order, rpoIndex)

	children := map[mir.BlockID][]mir.BlockID{}
	for _, b := range order {
		if b == fn.EntryID {
			continue
		}

		children[idom[b]] = append(children[idom[b]], b)
	}

	indexOf := make(map[mir.BlockID]int, len(order))
	for i, b := range order {
		indexOf[b] = i
	}

	df := map[mir.BlockID]*bitset.BitSet{}
	for _, b := range order {
		df[b] = bitset.New(uint(len(order)))
	}

	for _, b := range order {
		preds := fn.Block(b).Predecessors
		if len(preds) < 2 {
			continue
		}

		for _, p := range preds {
			runner := p
			for runner != idom[b] {
				df[runner].Set(uint(indexOf[b]))
				runner = idom[runner]
			}
		}
	}

	return &domTree{order: order, rpoIndex: rpoIndex, idom: idom, children: children, df: df}
}

func collectCandidates(fn *mir.Function, layout *mir.DataLayout) map[mir.ValueID]candidate {
	out := map[mir.ValueID]candidate{}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			alloc, ok := instr.(*mir.FrameAlloc)
			if !ok {
				continue
			}

			if layout.SizeOf(alloc.Ty) != 1 {
				continue // multi-slot: conservatively left for later per-offset work
			}

			out[alloc.DestID] = candidate{block: b.ID, ty: alloc.Ty}
		}
	}

	return out
}

// identityGEPs finds every GetElementPtr whose base is a promotion
// candidate and whose offset is the constant 0 -- the only GEP shape a
// single-slot allocation can produce without escaping (rule: "GEP with a
// non-constant offset also escapes the base"; a constant nonzero offset
// into a one-slot allocation is malformed MIR, not handled here). The
// result maps the GEP's own destination back to the alloc it is an alias
// of, so Load/Store addressing through it still resolves during renaming.
func identityGEPs(fn *mir.Function, candidates map[mir.ValueID]candidate) map[mir.ValueID]mir.ValueID {
	out := map[mir.ValueID]mir.ValueID{}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			gep, ok := instr.(*mir.GetElementPtr)
			if !ok {
				continue
			}

			base, ok := gep.Base.(mir.Operand)
			if !ok {
				continue
			}

			if _, isCandidate := candidates[base.ID]; !isCandidate {
				continue
			}

			if gep.Constant && gep.Offset == 0 {
				out[gep.DestID] = base.ID
			}
		}
	}

	return out
}

func resolveAllocAddress(addr mir.Value, promotable map[mir.ValueID]mir.Type, gepIdentity map[mir.ValueID]mir.ValueID) (mir.ValueID, bool) {
	op, ok := addr.(mir.Operand)
	if !ok {
		return 0, false
	}

	if _, ok := promotable[op.ID]; ok {
		return op.ID, true
	}

	if allocID, ok := gepIdentity[op.ID]; ok {
		if _, stillPromotable := promotable[allocID]; stillPromotable {
			return allocID, true
		}
	}

	return 0, false
}

// computeEscaping determines which allocations escape: a pointer value that
// reaches any context besides a direct Load/Store through it or an
// offset-0 GEP alias of it.
func computeEscaping(fn *mir.Function, candidates map[mir.ValueID]candidate, gepIdentity map[mir.ValueID]mir.ValueID) map[mir.ValueID]bool {
	escaping := map[mir.ValueID]bool{}

	markIfCandidate := func(v mir.Value) {
		op, ok := v.(mir.Operand)
		if !ok {
			return
		}

		if _, isCandidate := candidates[op.ID]; isCandidate {
			escaping[op.ID] = true
		}

		if allocID, ok := gepIdentity[op.ID]; ok {
			escaping[allocID] = true
		}
	}

	for _, b := range fn.Blocks {
		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.Store:
				// Storing *through* a promotable alloc's address is fine;
				// storing the alloc's *pointer value* into memory escapes
				// it, as does storing a composite value through it (no
				// per-slot tracking in this pass).
				if _, ok := resolveAllocAddress(ins.Address, typesOf(candidates), gepIdentity); ok {
					if ins.Ty.IsAggregate() {
						markIfCandidate(ins.Address)
					}
				} else {
					markIfCandidate(ins.Address)
				}

				markIfCandidate(ins.Src)
			case *mir.Load:
				// A load through the alloc's address is the promotable
				// case; any other use of Address (e.g. loading through a
				// non-identity GEP derived from it) is handled by the GEP
				// case below.
			case *mir.AddressOf:
				markIfCandidate(ins.Operand)
			case *mir.Assign:
				markIfCandidate(ins.Source)
			case *mir.GetElementPtr:
				base, ok := ins.Base.(mir.Operand)
				if !ok {
					continue
				}

				if _, isCandidate := candidates[base.ID]; isCandidate && !(ins.Constant && ins.Offset == 0) {
					escaping[base.ID] = true
				}
			case *mir.Call:
				for _, a := range ins.Args {
					markIfCandidate(a)
				}
			case *mir.VoidCall:
				for _, a := range ins.Args {
					markIfCandidate(a)
				}
			case *mir.MakeTuple:
				for _, e := range ins.Elements {
					markIfCandidate(e)
				}
			case *mir.MakeStruct:
				for _, f := range ins.Fields {
					markIfCandidate(f.Value)
				}
			case *mir.MakeFixedArray:
				for _, e := range ins.Elements {
					markIfCandidate(e)
				}
			}
		}

		if term, ok := b.Terminator.(*mir.Return); ok {
			for _, v := range term.Values {
				markIfCandidate(v)
			}
		}
	}

	return escaping
}

func typesOf(candidates map[mir.ValueID]candidate) map[mir.ValueID]mir.Type {
	out := make(map[mir.ValueID]mir.Type, len(candidates))
	for id, c := range candidates {
		out[id] = c.ty
	}

	return out
}

// renamer performs dominator-tree-order stack-based renaming: one stack
// per promoted allocation (offsets are always 0 since only single-slot
// allocations are promoted), pushed on Store/phi-definition, popped on
// leaving the subtree.
type renamer struct {
	fn          *mir.Function
	promotable  map[mir.ValueID]mir.Type
	gepIdentity map[mir.ValueID]mir.ValueID
	phiDest     map[mir.ValueID]map[mir.BlockID]mir.ValueID
	stacks      map[mir.ValueID]*stack.Stack[mir.Value]
	tree        *domTree
}

func (r *renamer) push(alloc mir.ValueID, v mir.Value) {
	s, ok := r.stacks[alloc]
	if !ok {
		s = stack.NewStack[mir.Value]()
		r.stacks[alloc] = s
	}

	s.Push(v)
}

func (r *renamer) pop(alloc mir.ValueID) { r.stacks[alloc].Pop() }

func (r *renamer) top(alloc mir.ValueID) (mir.Value, bool) {
	s, ok := r.stacks[alloc]
	if !ok || s.IsEmpty() {
		return nil, false
	}

	return s.Peek(0), true
}

func (r *renamer) visit(block mir.BlockID) {
	pushCount := map[mir.ValueID]int{}

	for alloc, blocks := range r.phiDest {
		if dest, ok := blocks[block]; ok {
			r.push(alloc, mir.Op(dest))
			pushCount[alloc]++
		}
	}

	b := r.fn.Block(block)
	kept := b.Instructions[:0]

	for _, instr := range b.Instructions {
		switch ins := instr.(type) {
		case *mir.Store:
			if allocID, ok := resolveAllocAddress(ins.Address, r.promotable, r.gepIdentity); ok {
				r.push(allocID, ins.Src)
				pushCount[allocID]++

				continue // store on a promoted alloc is removed entirely
			}
		case *mir.Load:
			if allocID, ok := resolveAllocAddress(ins.Address, r.promotable, r.gepIdentity); ok {
				if val, ok := r.top(allocID); ok {
					kept = append(kept, &mir.Assign{DestID: ins.DestID, Source: val, Ty: ins.Ty})
				} else {
					kept = append(kept, &mir.Assign{DestID: ins.DestID, Source: mir.Error{}, Ty: ins.Ty})
				}

				continue
			}
		case *mir.GetElementPtr:
			if _, ok := r.gepIdentity[ins.DestID]; ok {
				continue // identity alias of a promoted alloc, no longer needed
			}
		case *mir.FrameAlloc:
			if _, ok := r.promotable[ins.DestID]; ok {
				continue
			}
		}

		kept = append(kept, instr)
	}

	b.Instructions = kept

	// Fill phi operands in every successor with the current stack top.
	if b.Terminator != nil {
		for _, succ := range b.Terminator.Successors() {
			for alloc, blocks := range r.phiDest {
				dest, ok := blocks[succ]
				if !ok {
					continue
				}

				val, ok := r.top(alloc)
				if !ok {
					val = mir.Error{}
				}

				r.setPhiOperand(succ, dest, block, val)
			}
		}
	}

	for _, child := range r.tree.children[block] {
		r.visit(child)
	}

	for alloc, n := range pushCount {
		for i := 0; i < n; i++ {
			r.pop(alloc)
		}
	}
}

func (r *renamer) setPhiOperand(block mir.BlockID, dest mir.ValueID, from mir.BlockID, val mir.Value) {
	for _, phi := range r.fn.Block(block).Phis {
		if phi.DestID != dest {
			continue
		}

		for i, src := range phi.Sources {
			if src.Predecessor == from {
				phi.Sources[i].Value = val
				return
			}
		}

		phi.Sources = append(phi.Sources, mir.PhiSource{Predecessor: from, Value: val})

		return
	}
}

// stripPromotedInstructions removes any FrameAlloc/GetElementPtr that the
// renamer left behind unreachable through its normal per-block rewrite
// (blocks never visited because they are unreachable from entry still hold
// their original instructions; dropping them here keeps the post-condition
// "no promoted alloc's FrameAlloc survives" total rather than reachability
// dependent).
func stripPromotedInstructions(fn *mir.Function, promotable map[mir.ValueID]mir.Type, gepIdentity map[mir.ValueID]mir.ValueID) {
	for _, b := range fn.Blocks {
		kept := b.Instructions[:0]

		for _, instr := range b.Instructions {
			switch ins := instr.(type) {
			case *mir.FrameAlloc:
				if _, ok := promotable[ins.DestID]; ok {
					continue
				}
			case *mir.GetElementPtr:
				if _, ok := gepIdentity[ins.DestID]; ok {
					continue
				}
			}

			kept = append(kept, instr)
		}

		b.Instructions = kept
	}
}

// dropEmptyPhis removes any Phi whose Sources is empty: a phi inserted at a
// block that turned out unreachable from any store.
func dropEmptyPhis(fn *mir.Function) {
	for _, b := range fn.Blocks {
		kept := b.Phis[:0]

		for _, phi := range b.Phis {
			if len(phi.Sources) == 0 {
				continue
			}

			kept = append(kept, phi)
		}

		b.Phis = kept
	}
}
