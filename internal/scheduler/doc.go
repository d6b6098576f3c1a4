// Package scheduler drives one node through a run: it loads the initial
// condition, dispatches phases to the node's lanes, calls the neighbor
// exchange at phase boundaries and hands completed time levels to the output
// writer.
//
// # Swept decomposition
//
// With MPSS sub-steps per phase the run moves through these states:
//
//  1. Init: allocate the buffer, load the initial condition, write it out.
//  2. FirstPrism: the up pyramid, then the y-bridge offset by half a block.
//     Every block row now holds a row pyramid of MPSS levels.
//  3. FirstForward: shift the row window forward by half a block so the
//     valleys between pyramids sit at block centres.
//  4. SweptLoop, repeated MGST times: x-bridge, octahedron, y-bridge, then
//     the rotation. Backward rotations shift back and write; forward
//     rotations write and shift forward. Write-outs always see the
//     unshifted frame.
//  5. LastPrism: x-bridge and down pyramid close the last valley, and the
//     pending rotation flushes what is left.
//
// Column offsets alternate between iterations; rows alternate through the
// shifts. Every phase object advances its counter by MPSS after each
// invocation.
//
// # Standard decomposition
//
// One level at a time over whole blocks, with a halo swap after every
// level. It needs no geometry and supports open (non-periodic) domains.
package scheduler
