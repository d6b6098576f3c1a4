package geometry

// Block is a block origin in node buffer coordinates.
type Block struct {
	Row int
	Col int
}

// Blocks lists the origins of every block whose rows fall in [rowLo, rowHi),
// row-major. rowLo and rowHi are expected to be block aligned.
func Blocks(rowLo, rowHi, cols, blockSize int) []Block {
	var out []Block
	for r := rowLo; r+blockSize <= rowHi; r += blockSize {
		for c := 0; c+blockSize <= cols; c += blockSize {
			out = append(out, Block{Row: r, Col: c})
		}
	}
	return out
}

// Place translates a block-local set to buffer coordinates, shifting columns
// by colOffset and wrapping them into [0, cols). The result reuses dst.
func Place(dst []Point, s Set, b Block, colOffset, cols int) []Point {
	dst = dst[:0]
	for _, p := range s {
		c := (b.Col + p.Col + colOffset) % cols
		if c < 0 {
			c += cols
		}
		dst = append(dst, Point{Row: b.Row + p.Row, Col: c})
	}
	return dst
}
