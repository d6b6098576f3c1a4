// Package partition decides which rows of the domain every node owns and how
// a node splits them between its GPUs and its CPU worker pool.
//
// All arithmetic is done in block rows. The plan is computed once on the
// coordinator and broadcast; nodes never recompute it independently.
package partition

import (
	"math"

	"github.com/specialistvlad/sweptgrid/internal/runerr"
)

// Resources describes the lanes a single node offers.
type Resources struct {
	Name  string `msgpack:"name"`
	Cores int    `msgpack:"cores"`
	GPUs  int    `msgpack:"gpus"`
}

// Input is everything the partitioner needs.
type Input struct {
	Rows             int
	Cols             int
	BlockSize        int
	Affinity         float64
	AllowCPUFallback bool
	Nodes            []Resources
}

// Assignment is one node's share of the domain, in grid rows.
type Assignment struct {
	Rank     int   `msgpack:"rank"`
	RowStart int   `msgpack:"row_start"`
	Rows     int   `msgpack:"rows"`
	GPURows  []int `msgpack:"gpu_rows"`
	CPURows  int   `msgpack:"cpu_rows"`
}

// Plan is the cluster-wide partition.
type Plan struct {
	BlockSize   int          `msgpack:"block_size"`
	Affinity    float64      `msgpack:"affinity"`
	FellBack    bool         `msgpack:"fell_back"`
	Assignments []Assignment `msgpack:"assignments"`
}

// Total returns the number of rows the plan hands out.
func (p *Plan) Total() int {
	total := 0
	for _, a := range p.Assignments {
		total += a.Rows
	}
	return total
}

// Partition computes the per-node row ownership.
func Partition(in Input) (*Plan, error) {
	const op = "partition"
	if in.BlockSize <= 0 {
		return nil, runerr.New(runerr.Configuration, op, "block size must be positive, got %d", in.BlockSize)
	}
	if in.Rows <= 0 || in.Rows%in.BlockSize != 0 {
		return nil, runerr.New(runerr.Configuration, op, "rows %d are not divisible by block size %d", in.Rows, in.BlockSize)
	}
	if in.Cols <= 0 || in.Cols%in.BlockSize != 0 {
		return nil, runerr.New(runerr.Configuration, op, "cols %d are not divisible by block size %d", in.Cols, in.BlockSize)
	}
	if in.Affinity < 0 || in.Affinity > 1 || math.IsNaN(in.Affinity) {
		return nil, runerr.New(runerr.Configuration, op, "affinity must be within [0, 1], got %v", in.Affinity)
	}
	if len(in.Nodes) == 0 {
		return nil, runerr.New(runerr.Configuration, op, "no nodes declared")
	}

	totalGPUs, totalCores := 0, 0
	for _, n := range in.Nodes {
		if n.Cores < 0 || n.GPUs < 0 {
			return nil, runerr.New(runerr.Configuration, op, "node %q declares negative resources", n.Name)
		}
		totalGPUs += n.GPUs
		totalCores += n.Cores
	}

	plan := &Plan{BlockSize: in.BlockSize, Affinity: in.Affinity}
	if plan.Affinity > 0 && totalGPUs == 0 {
		if !in.AllowCPUFallback {
			return nil, runerr.New(runerr.Resource, op, "affinity %v requests GPUs but none are available", in.Affinity)
		}
		plan.Affinity = 0
		plan.FellBack = true
	}

	n := in.Rows / in.BlockSize
	gpuRows := int(math.Ceil(float64(n) * plan.Affinity))
	if gpuRows > n {
		gpuRows = n
	}
	cpuRows := n - gpuRows
	if cpuRows > 0 && totalCores == 0 {
		return nil, runerr.New(runerr.Configuration, op, "%d block rows need CPU lanes but no node has cores", cpuRows)
	}

	gpu := make([]int, len(in.Nodes))
	cpu := make([]int, len(in.Nodes))
	if gpuRows > 0 {
		perGPU := ceilDiv(gpuRows, totalGPUs)
		for i, node := range in.Nodes {
			gpu[i] = perGPU * node.GPUs
		}
	}
	if cpuRows > 0 {
		perCore := ceilDiv(cpuRows, totalCores)
		for i, node := range in.Nodes {
			cpu[i] = perCore * node.Cores
		}
	}

	c := corrector{removed: make([]int, len(in.Nodes))}
	c.trim(cpu, sum(cpu)-cpuRows)
	c.trim(gpu, sum(gpu)-gpuRows)

	start := 0
	for i, node := range in.Nodes {
		rows := (gpu[i] + cpu[i]) * in.BlockSize
		if rows == 0 {
			return nil, runerr.New(runerr.Configuration, op, "node %q receives no rows", node.Name)
		}
		a := Assignment{
			Rank:     i,
			RowStart: start,
			Rows:     rows,
			CPURows:  cpu[i] * in.BlockSize,
			GPURows:  splitDevices(gpu[i], node.GPUs, in.BlockSize),
		}
		plan.Assignments = append(plan.Assignments, a)
		start += rows
	}
	return plan, nil
}

// corrector removes over-allocated block rows one at a time. The node with
// the fewest removals so far loses the row; ties go to the first node at or
// after a round-robin cursor.
type corrector struct {
	removed []int
	cursor  int
}

func (c *corrector) trim(rows []int, excess int) {
	size := len(rows)
	for ; excess > 0; excess-- {
		best := -1
		for step := 0; step < size; step++ {
			i := (c.cursor + step) % size
			if rows[i] == 0 {
				continue
			}
			if best == -1 || c.removed[i] < c.removed[best] {
				best = i
			}
		}
		if best == -1 {
			return
		}
		rows[best]--
		c.removed[best]++
		c.cursor = (best + 1) % size
	}
}

// splitDevices spreads a node's GPU block rows over its devices, earlier
// devices taking the remainder.
func splitDevices(blockRows, devices, blockSize int) []int {
	if devices == 0 {
		return nil
	}
	out := make([]int, devices)
	for d := range out {
		share := blockRows / devices
		if d < blockRows%devices {
			share++
		}
		out[d] = share * blockSize
	}
	return out
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
