package ir

// SimplifyCFG cleans up the control flow graph of a definition:
//  1. Remove blocks unreachable from the entry
//  2. Merge a block into its only predecessor when that predecessor
//     ends in an unconditional branch to it
//  3. Renumber the surviving blocks in order
//
// Phi nodes are kept consistent with the new predecessor sets.
func SimplifyCFG(f *Func) {
	if f == nil || f.IsDeclaration() {
		return
	}
	live := computeReachability(f)
	dropDeadIncoming(f, live)

	for changed := true; changed; {
		changed = false
		preds := f.Predecessors()
		for a := range f.Blocks {
			if !live[a] || f.Blocks[a].Term.Kind != TermBr {
				continue
			}
			b := f.Blocks[a].Term.Br.Target
			if b == Entry || int(b) == a || !live[b] || len(livePreds(preds[b], live)) != 1 || hasPhi(&f.Blocks[b]) {
				continue
			}
			mergeInto(f, BlockID(a), b)
			live[b] = false
			changed = true
			break
		}
	}
	compactBlocks(f, live)
}

func computeReachability(f *Func) []bool {
	live := make([]bool, len(f.Blocks))
	stack := []BlockID{Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if int(id) >= len(live) || live[id] {
			continue
		}
		live[id] = true
		stack = append(stack, f.Blocks[id].Term.Successors()...)
	}
	return live
}

func livePreds(preds []BlockID, live []bool) []BlockID {
	var out []BlockID
	for _, p := range preds {
		if live[p] {
			out = append(out, p)
		}
	}
	return out
}

func hasPhi(b *Block) bool {
	return len(b.Instrs) > 0 && b.Instrs[0].Kind == InstrPhi
}

func dropDeadIncoming(f *Func, live []bool) {
	for i := range f.Blocks {
		for j := range f.Blocks[i].Instrs {
			in := &f.Blocks[i].Instrs[j]
			if in.Kind != InstrPhi {
				continue
			}
			kept := in.Phi.Incoming[:0]
			for _, inc := range in.Phi.Incoming {
				if int(inc.Block) < len(live) && live[inc.Block] {
					kept = append(kept, inc)
				}
			}
			in.Phi.Incoming = kept
		}
	}
}

// mergeInto appends b to a. Successors of b now see a as their predecessor.
func mergeInto(f *Func, a, b BlockID) {
	dst := &f.Blocks[a]
	src := &f.Blocks[b]
	dst.Instrs = append(dst.Instrs, src.Instrs...)
	dst.Term = src.Term
	src.Instrs = nil
	src.Term = Terminator{}
	for _, s := range dst.Term.Successors() {
		blk := f.Block(s)
		if blk == nil {
			continue
		}
		for j := range blk.Instrs {
			in := &blk.Instrs[j]
			if in.Kind != InstrPhi {
				continue
			}
			for k := range in.Phi.Incoming {
				if in.Phi.Incoming[k].Block == b {
					in.Phi.Incoming[k].Block = a
				}
			}
		}
	}
}

func compactBlocks(f *Func, live []bool) {
	remap := make(map[BlockID]BlockID, len(f.Blocks))
	out := make([]Block, 0, len(f.Blocks))
	for i := range f.Blocks {
		if !live[i] {
			continue
		}
		remap[BlockID(i)] = BlockID(len(out))
		out = append(out, f.Blocks[i])
	}
	for i := range out {
		out[i].ID = BlockID(i)
		out[i].Term.remap(remap)
		for j := range out[i].Instrs {
			in := &out[i].Instrs[j]
			if in.Kind != InstrPhi {
				continue
			}
			for k := range in.Phi.Incoming {
				in.Phi.Incoming[k].Block = remap[in.Phi.Incoming[k].Block]
			}
		}
	}
	f.Blocks = out
}
