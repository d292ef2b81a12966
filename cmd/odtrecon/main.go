package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"odtrecon/pkg/config"
	"odtrecon/pkg/metrics"
	"odtrecon/pkg/phantom"
	"odtrecon/pkg/reconstruction"
	"odtrecon/pkg/visualization"
)

// peakRadius is the half-width of the neighbourhood reported around the
// reconstructed peak.
const peakRadius = 2

func main() {
	configPath := flag.String("config", "odtrecon.yaml", "YAML configuration file (defaults are used if it does not exist)")
	createConfig := flag.Bool("create-config", false, "Write the default configuration to -config and exit")
	numCores := flag.Int("cores", -1, "Number of CPU cores to use (overrides the configuration when >= 0; 0 means all)")
	saveSlices := flag.Bool("save-slices", false, "Save slices of the reconstruction along all axes")
	slicesDir := flag.String("slices-dir", "", "Directory to save extracted slices (overrides the configuration)")
	component := flag.String("component", "", "Component to render: real, imag or magnitude (overrides the configuration)")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *numCores >= 0 {
		cfg.Reconstruction.NumCores = *numCores
	}
	if *saveSlices {
		cfg.Output.SaveSlices = true
	}
	if *slicesDir != "" {
		cfg.Output.SlicesDir = *slicesDir
	}
	if *component != "" {
		cfg.Output.Component = *component
	}

	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid reconstruction settings: %v", err)
	}
	if cfg.Output.Verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	fmt.Println("================================")
	fmt.Println("OPTICAL DIFFRACTION TOMOGRAPHY: 3D FILTERED BACKPROPAGATION")
	fmt.Println("Born approximation, single-axis rotation")
	fmt.Println("================================")

	geom := cfg.Geometry()
	scatterer, err := cfg.Scatterer()
	if err != nil {
		log.Fatalf("Invalid phantom settings: %v", err)
	}
	angles := phantom.Angles(cfg.Phantom.Angles)

	fmt.Printf("Synthesizing %d projections of %dx%d pixels...\n", len(angles), geom.Height, geom.Width)
	sino, err := phantom.Sinogram(geom, scatterer, angles)
	if err != nil {
		log.Fatalf("Failed to synthesize sinogram: %v", err)
	}

	fmt.Println("Starting backpropagation...")
	startTime := time.Now()
	vol, err := reconstruction.Backpropagate3D(sino, angles,
		cfg.Physics.Wavelength, cfg.Physics.MediumIndex, cfg.Physics.DetectorDistance, opts)
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	processingTime := time.Since(startTime)
	fmt.Printf("\nReconstruction completed in %.2f seconds (%dx%dx%d voxels)\n",
		processingTime.Seconds(), vol.Depth, vol.Height, vol.Width)

	truth, err := phantom.Object(geom, scatterer)
	if err != nil {
		log.Fatalf("Failed to build ground truth: %v", err)
	}
	report, err := metrics.Compare(truth, vol)
	if err != nil {
		log.Fatalf("Failed to compute metrics: %v", err)
	}
	leakage, err := metrics.SpectralLeakage(vol, 2*geom.Wavenumber())
	if err != nil {
		log.Fatalf("Failed to compute spectral leakage: %v", err)
	}

	comp, err := visualization.ParseComponent(cfg.Output.Component)
	if err != nil {
		log.Fatalf("Invalid output component: %v", err)
	}
	viewer, viewErr := visualization.NewViewer(vol, comp)

	pz, py, px := metrics.PeakLocation(vol)
	wz, wy, wx := scatterer.Voxel(geom)

	fmt.Printf("\nValidation Metrics (against the synthetic object):\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("Peak location (z,y,x): (%d,%d,%d), expected (%d,%d,%d)\n", pz, py, px, wz, wy, wx)

	peakValue := vol.Real[vol.Index(pz, py, px)]
	if near, dist, ok := metrics.NearestPeak(vol, float64(wz), float64(wy), float64(wx), peakValue/2); ok {
		fmt.Printf("Nearest strong peak: (%d,%d,%d), %.2f voxels from the scatterer\n", near.Z, near.Y, near.X, dist)

		if viewErr == nil {
			region, sz, sy, sx, err := viewer.RegionAround(near.Z, near.Y, near.X, peakRadius)
			if err != nil {
				log.Fatalf("Failed to extract peak region: %v", err)
			}
			fmt.Printf("Peak neighbourhood (%dx%dx%d, %s): min %.4g, max %.4g, mean %.4g\n",
				sz, sy, sx, comp, floats.Min(region), floats.Max(region), stat.Mean(region, nil))
		}
	}
	fmt.Printf("Mutual Information (MI): %.3f\n", report.MI)
	fmt.Printf("Entropy Difference: %.3f\n", report.EntropyDiff)
	fmt.Printf("Root Mean Square Error (RMSE): %.6g\n", report.RMSE)
	fmt.Printf("Normalized RMSE: %.3f\n", report.NRMSE)
	fmt.Printf("Structural Similarity Index (SSIM): %.3f\n", report.SSIM)
	fmt.Printf("Correlation: %.3f\n", report.Correlation)
	fmt.Printf("Edge Preservation: %.3f\n", report.EdgePreserved)
	fmt.Printf("Power beyond 2km: %.2f%%\n", leakage*100)

	index := reconstruction.ObjectToIndex(vol, cfg.Physics.Wavelength, cfg.Physics.MediumIndex)
	peak := index[vol.Index(pz, py, px)]
	fmt.Printf("\nRefractive index at peak: %.6f%+.6fi (medium %.4f)\n",
		real(peak), imag(peak), cfg.Physics.MediumIndex)

	fmt.Println("\nParallel processing:")
	workers := opts.Workers
	if workers == 0 {
		fmt.Printf("- Used all available cores (%s executor, %s buffering)\n", opts.Executor, opts.Buffering)
	} else {
		fmt.Printf("- Used %d cores (%s executor, %s buffering)\n", workers, opts.Executor, opts.Buffering)
	}

	if cfg.Output.SaveSlices {
		if viewErr != nil {
			log.Fatalf("Failed to create viewer: %v", viewErr)
		}

		fmt.Printf("\nExtracting %s slices along all axes...\n", comp)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(cfg.Output.SlicesDir, axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
		fmt.Println("Slice extraction completed!")
	}
}
