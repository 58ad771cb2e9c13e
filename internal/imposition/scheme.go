// Package imposition computes how the pages of a linear document are
// regrouped into folded saddle-stitch blocks. Everything here is pure: the
// resulting Scheme fully determines the rendering work of a conversion.
package imposition

import (
	"fmt"
	"sort"
)

// Slot holds a zero-based source page index or Blank.
type Slot int

// Blank marks a slot with no source page.
const Blank Slot = -1

// IsBlank reports whether the slot carries no page.
func (s Slot) IsBlank() bool { return s < 0 }

// Page returns the page index held by the slot.
func (s Slot) Page() (int, bool) {
	if s.IsBlank() {
		return 0, false
	}
	return int(s), true
}

func (s Slot) String() string {
	if s.IsBlank() {
		return "blank"
	}
	return fmt.Sprintf("%d", int(s))
}

// Face is one printed side of a sheet: two half-page slots.
type Face struct {
	Left  Slot
	Right Slot
}

// Sheet is a physical piece of media printed on both sides.
type Sheet struct {
	Front Face
	Back  Face
}

// Half tags the print pass a BlockHalf belongs to.
type Half string

const (
	// Outer is the pass carrying the back faces.
	Outer Half = "outer"
	// Inner is the pass carrying the front faces.
	Inner Half = "inner"
)

// HalfLabels maps print passes to the suffix used in output names.
type HalfLabels struct {
	Outer string
	Inner string
}

// DefaultHalfLabels names the outer pass "a" and the inner pass "b", so the
// outer pass of a block sorts first.
var DefaultHalfLabels = HalfLabels{Outer: "a", Inner: "b"}

// Swapped returns the labels with the two passes exchanged.
func (l HalfLabels) Swapped() HalfLabels { return HalfLabels{Outer: l.Inner, Inner: l.Outer} }

func (l HalfLabels) label(h Half) string {
	if h == Outer {
		return l.Outer
	}
	return l.Inner
}

// BlockHalf is the unit of rendering work: one output document.
type BlockHalf struct {
	ID    string
	Block int // zero-based block ordinal
	Half  Half
	Pages []Face
}

// DistinctPages returns the sorted set of source pages the half references.
func (b BlockHalf) DistinctPages() []int {
	seen := make(map[int]struct{}, len(b.Pages)*2)
	for _, f := range b.Pages {
		for _, s := range [2]Slot{f.Left, f.Right} {
			if p, ok := s.Page(); ok {
				seen[p] = struct{}{}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Scheme is the complete, immutable imposition plan for one conversion.
type Scheme struct {
	PageCount      int
	SheetsPerBlock int
	BlockSizes     []int
	Halves         []BlockHalf
}

// Blocks returns the number of blocks in the scheme.
func (s Scheme) Blocks() int { return len(s.BlockSizes) }

// ClampSheetsPerBlock reduces the target so a document smaller than one
// full block becomes a single block.
func ClampSheetsPerBlock(pageCount, sheetsPerBlock int) int {
	if total := ceilDiv(pageCount, 4); sheetsPerBlock > total {
		return total
	}
	return sheetsPerBlock
}

// BlockSizes partitions ceil(pageCount/4) sheets into the fewest blocks of
// at most sheetsPerBlock sheets, shrinking blocks round-robin from the end
// and then ordering them by alternately prepending and appending.
func BlockSizes(pageCount, sheetsPerBlock int) []int {
	total := ceilDiv(pageCount, 4)
	target := ClampSheetsPerBlock(pageCount, sheetsPerBlock)
	if total == 0 || target <= 0 {
		return nil
	}

	groups := make([]int, ceilDiv(total, target))
	sum := 0
	for i := range groups {
		groups[i] = target
		sum += target
	}
	for cursor := len(groups) - 1; sum > total; {
		groups[cursor]--
		sum--
		cursor--
		if cursor < 0 {
			cursor = len(groups) - 1
		}
	}

	out := make([]int, 0, len(groups))
	for i := 0; i < len(groups); i++ {
		g := groups[len(groups)-1-i]
		if i%2 == 1 {
			out = append(out, g)
		} else {
			out = append([]int{g}, out...)
		}
	}
	return out
}

// DistributePages hands out page indices in document order: block i gets
// the next sizes[i]*4 pages; the last block may come up short.
func DistributePages(pageCount int, sizes []int) [][]int {
	out := make([][]int, len(sizes))
	next := 0
	for i, n := range sizes {
		stop := min(next+n*4, pageCount)
		pages := make([]int, 0, n*4)
		for p := next; p < stop; p++ {
			pages = append(pages, p)
		}
		out[i] = pages
		next = stop
	}
	return out
}

// slot positions within a sheet's arena cell
const (
	frontLeft = iota
	frontRight
	backLeft
	backRight
	slotsPerSheet
)

// AssignSheets lays the pages of one block onto its sheets in signature
// order. The arena holds four slots per sheet; the fill order walks sheets
// last to first taking (back-right, front-left), then first to last taking
// (front-right, back-left). Pages beyond the fill order are ignored and
// unfilled slots stay blank.
func AssignSheets(sheetCount int, pages []int) []Sheet {
	arena := make([]Slot, sheetCount*slotsPerSheet)
	for i := range arena {
		arena[i] = Blank
	}

	order := make([]int, 0, len(arena))
	for s := sheetCount - 1; s >= 0; s-- {
		order = append(order, s*slotsPerSheet+backRight, s*slotsPerSheet+frontLeft)
	}
	for s := 0; s < sheetCount; s++ {
		order = append(order, s*slotsPerSheet+frontRight, s*slotsPerSheet+backLeft)
	}
	for i, pos := range order {
		if i >= len(pages) {
			break
		}
		arena[pos] = Slot(pages[i])
	}

	sheets := make([]Sheet, sheetCount)
	for s := range sheets {
		cell := arena[s*slotsPerSheet : (s+1)*slotsPerSheet]
		sheets[s] = Sheet{
			Front: Face{Left: cell[frontLeft], Right: cell[frontRight]},
			Back:  Face{Left: cell[backLeft], Right: cell[backRight]},
		}
	}
	return sheets
}

// Build computes the full scheme. Each block yields its outer half (back
// faces, last sheet first) followed by its inner half (front faces, first
// sheet first). Reversing the outer pass lets the printed stack be flipped
// and fed back for the inner pass without re-sorting.
func Build(pageCount, sheetsPerBlock int, labels HalfLabels) Scheme {
	sizes := BlockSizes(pageCount, sheetsPerBlock)
	perBlock := DistributePages(pageCount, sizes)

	scheme := Scheme{
		PageCount:      pageCount,
		SheetsPerBlock: ClampSheetsPerBlock(pageCount, sheetsPerBlock),
		BlockSizes:     sizes,
		Halves:         make([]BlockHalf, 0, len(sizes)*2),
	}
	for b, n := range sizes {
		sheets := AssignSheets(n, perBlock[b])

		outer := make([]Face, 0, n)
		for s := n - 1; s >= 0; s-- {
			outer = append(outer, sheets[s].Back)
		}
		inner := make([]Face, 0, n)
		for _, sh := range sheets {
			inner = append(inner, sh.Front)
		}

		scheme.Halves = append(scheme.Halves,
			BlockHalf{ID: halfID(b, labels.label(Outer)), Block: b, Half: Outer, Pages: outer},
			BlockHalf{ID: halfID(b, labels.label(Inner)), Block: b, Half: Inner, Pages: inner},
		)
	}
	return scheme
}

// Validate checks that every page in [0, PageCount) is placed exactly once
// and that no block exceeds the target size.
func (s Scheme) Validate() error {
	seen := make([]bool, s.PageCount)
	placed := 0
	for _, h := range s.Halves {
		for _, f := range h.Pages {
			for _, slot := range [2]Slot{f.Left, f.Right} {
				p, ok := slot.Page()
				if !ok {
					continue
				}
				if p >= s.PageCount {
					return fmt.Errorf("block half %s references page %d beyond page count %d", h.ID, p, s.PageCount)
				}
				if seen[p] {
					return fmt.Errorf("page %d placed twice (block half %s)", p, h.ID)
				}
				seen[p] = true
				placed++
			}
		}
	}
	if placed != s.PageCount {
		return fmt.Errorf("placed %d of %d pages", placed, s.PageCount)
	}
	for i, n := range s.BlockSizes {
		if n > s.SheetsPerBlock {
			return fmt.Errorf("block %d has %d sheets, limit %d", i, n, s.SheetsPerBlock)
		}
	}
	return nil
}

func halfID(block int, label string) string {
	return fmt.Sprintf("%03d_%s", block+1, label)
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
