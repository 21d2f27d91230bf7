// Command cnncluster-cli runs one clustering driver mode against point
// data stored on disk in the .npy array format.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rinikerlab/cnncluster/internal/hierarchy"
	"github.com/rinikerlab/cnncluster/internal/runner"
	"github.com/rinikerlab/cnncluster/pkg/config"
	"github.com/rinikerlab/cnncluster/pkg/npyfile"
	"github.com/rinikerlab/cnncluster/pkg/observability"
)

var version = "dev"

// flags shared across every mode.
type sharedFlags struct {
	cut       float64
	sim       uint
	dcut      float64
	dsim      uint
	nsteps    uint
	dfe       float64
	nkeep     int
	nsplit    int
	relmax    float64
	ntrajs    uint
	ndims     uint
	slice     uint
	useCNN    bool
	mutual    bool
	dfile     string
	cfile     string
	hfile     string
	mfile     string
	tfile     string
	overwrite bool
}

func bindSharedFlags(cmd *cobra.Command, f *sharedFlags) {
	cmd.Flags().Float64Var(&f.cut, "cut", 1.0, "neighbor radius")
	cmd.Flags().UintVar(&f.sim, "sim", 2, "minimum similarity")
	cmd.Flags().Float64Var(&f.dcut, "dcut", 0.0, "scan radius step, negative to shrink")
	cmd.Flags().UintVar(&f.dsim, "dsim", 0, "scan similarity step")
	cmd.Flags().UintVar(&f.nsteps, "nsteps", 0, "number of scan steps")
	cmd.Flags().Float64Var(&f.dfe, "dfe", 0.25, "free-energy increment driving radius decay")
	cmd.Flags().IntVar(&f.nkeep, "Nkeep", 2, "minimum cluster size kept after pruning")
	cmd.Flags().IntVar(&f.nsplit, "Nsplit", 100, "cluster size above which refinement attempts a split")
	cmd.Flags().Float64Var(&f.relmax, "relmax", 0.9, "fraction of points that must be claimed before a scan stops")
	cmd.Flags().UintVar(&f.ntrajs, "ntrajs", 0, "trajectory count, for variable-length input")
	cmd.Flags().UintVar(&f.ndims, "ndims", 0, "point dimensionality")
	cmd.Flags().UintVar(&f.slice, "slice", 1, "subsample stride")
	cmd.Flags().BoolVar(&f.useCNN, "CNN", true, "use CNN similarity (false selects vs-CNN)")
	cmd.Flags().BoolVar(&f.mutual, "mutual", true, "require mutual neighbor membership")
	cmd.Flags().StringVar(&f.dfile, "dfile", "", "input point data file")
	cmd.Flags().StringVar(&f.cfile, "cfile", "clusters.npy", "output cluster file")
	cmd.Flags().StringVar(&f.hfile, "hfile", "", "hierarchic mode: input base cluster file")
	cmd.Flags().StringVar(&f.mfile, "mfile", "", "mapping mode: reduced-data file")
	cmd.Flags().StringVar(&f.tfile, "tfile", "dtrajs.npy", "dtrajs mode: output discretized trajectory file")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "overwrite existing output files instead of backing them up")
}

func (f *sharedFlags) clusterConfig() config.ClusterConfig {
	return config.ClusterConfig{
		Cut: f.cut, Sim: f.sim, DeltaCut: f.dcut, DeltaSim: f.dsim, NSteps: f.nsteps,
		DeltaFE: f.dfe, Nkeep: f.nkeep, Nsplit: f.nsplit, RelMax: f.relmax,
		NTrajs: f.ntrajs, NDims: f.ndims, Slice: f.slice, UseCNN: f.useCNN, Mutual: f.mutual,
	}
}

func main() {
	root := &cobra.Command{
		Use:     "cnncluster",
		Short:   "Density-based clustering of molecular dynamics trajectories",
		Version: version,
	}

	root.AddCommand(newClusteringCmd(), newHierarchicCmd(), newScanCmd(), newMappingCmd(), newDtrajsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunner() *runner.Runner {
	cfg := config.Default()
	return runner.New(cfg, observability.NewDefaultLogger())
}

// loadPoints reads dfile as a flat (N, d) array, inferring d from the
// array's trailing shape dimension, and reshapes it into a point matrix.
func loadPoints(path string) ([][]float32, []uint32, error) {
	arr, err := npyfile.Read(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading input data: %w", err)
	}
	if len(arr.Shape) < 2 {
		return nil, nil, fmt.Errorf("expected at least a 2-D array, got shape %v", arr.Shape)
	}

	d := arr.Shape[len(arr.Shape)-1]
	flat := arr.Float32Data()
	n := len(flat) / d

	points := make([][]float32, n)
	for i := 0; i < n; i++ {
		points[i] = flat[i*d : (i+1)*d]
	}

	var shapes []uint32
	shapePath := npyfile.SidecarPath(path, "shape")
	if shapeArr, err := npyfile.Read(shapePath); err == nil {
		for _, v := range shapeArr.Int32Data() {
			shapes = append(shapes, uint32(v))
		}
	} else {
		shapes = []uint32{uint32(n)}
	}

	return points, shapes, nil
}

func writeClusters(base string, clusters [][]uint32, leaves []hierarchy.Step, overwrite bool) error {
	var flat []int32
	var sizes []int32
	for _, c := range clusters {
		sizes = append(sizes, int32(len(c)))
		for _, p := range c {
			flat = append(flat, int32(p))
		}
	}

	if _, err := npyfile.Write(base, npyfile.NewInt32Array(flat, []int{len(flat)}), overwrite); err != nil {
		return fmt.Errorf("writing cluster file: %w", err)
	}
	if _, err := npyfile.Write(npyfile.SidecarPath(base, "shape"), npyfile.NewInt32Array(sizes, []int{len(sizes)}), overwrite); err != nil {
		return fmt.Errorf("writing cluster shape file: %w", err)
	}

	if leaves != nil {
		steps := make([]int32, len(leaves))
		cuts := make([]float32, len(leaves))
		sims := make([]int32, len(leaves))
		for i, l := range leaves {
			steps[i] = int32(l.Step)
			cuts[i] = l.Cut
			sims[i] = int32(l.Sim)
		}
		if _, err := npyfile.Write(npyfile.SidecarPath(base, "leaves"), npyfile.NewInt32Array(steps, []int{len(steps)}), overwrite); err != nil {
			return fmt.Errorf("writing leaves file: %w", err)
		}
		if _, err := npyfile.Write(npyfile.SidecarPath(base, "leaves-cut"), npyfile.NewFloat32Array(cuts, []int{len(cuts)}), overwrite); err != nil {
			return fmt.Errorf("writing leaves-cut file: %w", err)
		}
		if _, err := npyfile.Write(npyfile.SidecarPath(base, "leaves-sim"), npyfile.NewInt32Array(sims, []int{len(sims)}), overwrite); err != nil {
			return fmt.Errorf("writing leaves-sim file: %w", err)
		}
	}

	return nil
}

func requireInput(path, flagName string) error {
	if path == "" {
		return fmt.Errorf("missing required flag --%s", flagName)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file %s: %w", path, err)
	}
	return nil
}

func newClusteringCmd() *cobra.Command {
	f := &sharedFlags{}
	cmd := &cobra.Command{
		Use:   "clustering",
		Short: "Run one seed-and-expand clustering pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireInput(f.dfile, "dfile"); err != nil {
				return err
			}
			points, _, err := loadPoints(f.dfile)
			if err != nil {
				return err
			}

			r := newRunner()
			clusters, err := r.ClusterOnce(f.dfile, points, f.clusterConfig())
			if err != nil {
				return err
			}

			fmt.Printf("found %d clusters over %d points\n", len(clusters), len(points))
			return writeClusters(f.cfile, clusters, nil, f.overwrite)
		},
	}
	bindSharedFlags(cmd, f)
	return cmd
}

func newHierarchicCmd() *cobra.Command {
	f := &sharedFlags{}
	cmd := &cobra.Command{
		Use:   "hierarchic",
		Short: "Recursively refine a base cluster partition by radius decay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireInput(f.dfile, "dfile"); err != nil {
				return err
			}
			if err := requireInput(f.hfile, "hfile"); err != nil {
				return err
			}
			points, _, err := loadPoints(f.dfile)
			if err != nil {
				return err
			}

			baseArr, err := npyfile.Read(f.hfile)
			if err != nil {
				return fmt.Errorf("reading base cluster file: %w", err)
			}
			shapeArr, err := npyfile.Read(npyfile.SidecarPath(f.hfile, "shape"))
			if err != nil {
				return fmt.Errorf("reading base cluster shape file: %w", err)
			}
			base := unflattenClusters(baseArr.Int32Data(), shapeArr.Int32Data())

			r := newRunner()
			cfg := f.clusterConfig()
			if cfg.NDims == 0 && len(points) > 0 {
				cfg.NDims = uint(len(points[0]))
			}
			result := r.Refine(f.dfile, points, base, cfg)

			fmt.Printf("refined into %d clusters\n", len(result.Clusters))
			return writeClusters(f.cfile, result.Clusters, result.Leaves, f.overwrite)
		},
	}
	bindSharedFlags(cmd, f)
	return cmd
}

func newScanCmd() *cobra.Command {
	f := &sharedFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Sweep a (cut, sim) schedule until enough of the point set is claimed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireInput(f.dfile, "dfile"); err != nil {
				return err
			}
			points, _, err := loadPoints(f.dfile)
			if err != nil {
				return err
			}

			r := newRunner()
			result := r.Scan(points, f.clusterConfig())

			leaves := make([]hierarchy.Step, len(result.Clusters))
			for i := range leaves {
				leaves[i] = result.Step
			}

			fmt.Printf("scan stopped at step %d (cut=%.4f, sim=%d), %d clusters\n",
				result.Step.Step, result.Step.Cut, result.Step.Sim, len(result.Clusters))
			return writeClusters(f.cfile, result.Clusters, leaves, f.overwrite)
		},
	}
	bindSharedFlags(cmd, f)
	return cmd
}

func newMappingCmd() *cobra.Command {
	f := &sharedFlags{}
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Attach held-out frames to an existing reduced-space partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireInput(f.dfile, "dfile"); err != nil {
				return err
			}
			if err := requireInput(f.mfile, "mfile"); err != nil {
				return err
			}
			if err := requireInput(f.hfile, "hfile"); err != nil {
				return err
			}

			fullData, _, err := loadPoints(f.dfile)
			if err != nil {
				return err
			}
			reducedData, _, err := loadPoints(f.mfile)
			if err != nil {
				return err
			}

			baseArr, err := npyfile.Read(f.hfile)
			if err != nil {
				return fmt.Errorf("reading reduced cluster file: %w", err)
			}
			shapeArr, err := npyfile.Read(npyfile.SidecarPath(f.hfile, "shape"))
			if err != nil {
				return fmt.Errorf("reading reduced cluster shape file: %w", err)
			}
			clusters := unflattenClusters(baseArr.Int32Data(), shapeArr.Int32Data())

			leaves, err := readLeaves(f.hfile, len(clusters))
			if err != nil {
				return err
			}

			reducedToFull := make(map[uint32]uint32, len(reducedData))
			for i := range reducedData {
				reducedToFull[uint32(i)] = uint32(i)
			}

			r := newRunner()
			mapped := r.Map(clusters, leaves, fullData, reducedData, reducedToFull)

			fmt.Printf("mapped %d points across %d clusters\n", len(fullData), len(mapped))
			return writeClusters(f.cfile, mapped, leaves, f.overwrite)
		},
	}
	bindSharedFlags(cmd, f)
	return cmd
}

func newDtrajsCmd() *cobra.Command {
	f := &sharedFlags{}
	cmd := &cobra.Command{
		Use:   "dtrajs",
		Short: "Convert full-ID-space cluster membership into discretized trajectory labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireInput(f.cfile, "cfile"); err != nil {
				return err
			}

			clusterArr, err := npyfile.Read(f.cfile)
			if err != nil {
				return fmt.Errorf("reading cluster file: %w", err)
			}
			shapeArr, err := npyfile.Read(npyfile.SidecarPath(f.cfile, "shape"))
			if err != nil {
				return fmt.Errorf("reading cluster shape file: %w", err)
			}
			clusters := unflattenClusters(clusterArr.Int32Data(), shapeArr.Int32Data())

			var shapes []uint32
			if f.dfile != "" {
				if _, _, err := loadPoints(f.dfile); err == nil {
					shapeArr, err := npyfile.Read(npyfile.SidecarPath(f.dfile, "shape"))
					if err == nil {
						for _, v := range shapeArr.Int32Data() {
							shapes = append(shapes, uint32(v))
						}
					}
				}
			}
			if shapes == nil {
				return fmt.Errorf("dtrajs requires --dfile with a companion -shape file describing trajectory lengths")
			}

			r := newRunner()
			labels := r.Discretize(clusters, shapes)

			var flat []int32
			var sizes []int32
			for _, l := range labels {
				sizes = append(sizes, int32(len(l)))
				flat = append(flat, l...)
			}

			if _, err := npyfile.Write(f.tfile, npyfile.NewInt32Array(flat, []int{len(flat)}), f.overwrite); err != nil {
				return fmt.Errorf("writing discretized trajectory file: %w", err)
			}
			if _, err := npyfile.Write(npyfile.SidecarPath(f.tfile, "shape"), npyfile.NewInt32Array(sizes, []int{len(sizes)}), f.overwrite); err != nil {
				return fmt.Errorf("writing discretized trajectory shape file: %w", err)
			}

			fmt.Printf("discretized %d trajectories\n", len(labels))
			return nil
		},
	}
	bindSharedFlags(cmd, f)
	return cmd
}

// unflattenClusters splits a flat point-ID array back into per-cluster
// slices using the prefix sums of sizes, the inverse of writeClusters'
// flattening.
func unflattenClusters(flat []int32, sizes []int32) [][]uint32 {
	clusters := make([][]uint32, len(sizes))
	offset := 0
	for i, size := range sizes {
		members := make([]uint32, size)
		for j := range members {
			members[j] = uint32(flat[offset+j])
		}
		clusters[i] = members
		offset += int(size)
	}
	return clusters
}

// readLeaves reconstructs per-cluster clstep entries from a cluster
// file's -leaves, -leaves-cut and -leaves-sim sidecars.
func readLeaves(base string, n int) ([]hierarchy.Step, error) {
	stepArr, err := npyfile.Read(npyfile.SidecarPath(base, "leaves"))
	if err != nil {
		return nil, fmt.Errorf("reading leaves file: %w", err)
	}
	cutArr, err := npyfile.Read(npyfile.SidecarPath(base, "leaves-cut"))
	if err != nil {
		return nil, fmt.Errorf("reading leaves-cut file: %w", err)
	}
	simArr, err := npyfile.Read(npyfile.SidecarPath(base, "leaves-sim"))
	if err != nil {
		return nil, fmt.Errorf("reading leaves-sim file: %w", err)
	}

	steps := stepArr.Int32Data()
	cuts := cutArr.Float32Data()
	sims := simArr.Int32Data()

	if len(steps) != n || len(cuts) != n || len(sims) != n {
		return nil, fmt.Errorf("leaves sidecar length mismatch: got %d/%d/%d, want %d", len(steps), len(cuts), len(sims), n)
	}

	leaves := make([]hierarchy.Step, n)
	for i := range leaves {
		leaves[i] = hierarchy.Step{Step: uint32(steps[i]), Cut: cuts[i], Sim: uint32(sims[i])}
	}
	return leaves, nil
}
