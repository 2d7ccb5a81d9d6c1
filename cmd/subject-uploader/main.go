package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/skysurvey-tools/subjectgen/internal/lasair"
	"github.com/skysurvey-tools/subjectgen/internal/logging"
	"github.com/skysurvey-tools/subjectgen/internal/panoptes"
	"github.com/skysurvey-tools/subjectgen/internal/render"
	"github.com/skysurvey-tools/subjectgen/internal/subject"
)

// CLI flags
var (
	objectsFlag      string
	objectsFileFlag  string
	renderersFlag    []string
	lasairTokenFlag  string
	lasairURLFlag    string
	panoptesToken    string
	panoptesURLFlag  string
	projectFlag      string
	limitFlag        int
	dryRunFlag       bool
	continueOnErrors bool
)

// rootCmd is the main Cobra command for the subject-uploader CLI.
var rootCmd = &cobra.Command{
	Use:   "subject-uploader",
	Short: "Generate and upload Zooniverse subjects from Lasair transients",
	Long: `subject-uploader pulls image cutouts and photometry for a list of Lasair
object IDs, renders each detection epoch to PNG cutouts and light-curve JSON,
and uploads the resulting media as subjects to a Zooniverse project.

Tokens default to the LASAIR_TOKEN and PANOPTES_TOKEN environment variables.

Examples:
  subject-uploader --objects ZTF25aaxxyzq,ZTF25aabbccd --project 12345
  subject-uploader --objects-file ids.txt --renderers science,template,difference,lightcurve
  subject-uploader --objects-file ids.txt --project 12345 --limit 10 --dry-run`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&objectsFlag, "objects", "", "Comma-separated Lasair object IDs")
	rootCmd.Flags().StringVar(&objectsFileFlag, "objects-file", "", "File with one object ID per line")
	rootCmd.Flags().StringSliceVar(&renderersFlag, "renderers", nil,
		"Renderers to run per detection: science, template, difference, triplet, lightcurve (default science,template,difference)")
	rootCmd.Flags().StringVar(&lasairTokenFlag, "lasair-token", "", "Lasair API token (default $LASAIR_TOKEN)")
	rootCmd.Flags().StringVar(&lasairURLFlag, "lasair-url", "", "Override the Lasair API base URL")
	rootCmd.Flags().StringVar(&panoptesToken, "panoptes-token", "", "Panoptes bearer token (default $PANOPTES_TOKEN)")
	rootCmd.Flags().StringVar(&panoptesURLFlag, "panoptes-url", "", "Override the Panoptes API base URL")
	rootCmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Zooniverse project ID to link subjects to")
	rootCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum subjects to upload (0 = unlimited)")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Render subjects without uploading")
	rootCmd.Flags().BoolVar(&continueOnErrors, "continue-on-error", true, "Keep going after per-detection failures")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()
	cmd.SilenceUsage = true

	objectIDs, err := resolveObjectIDs()
	if err != nil {
		return err
	}

	lasairToken := flagOrEnv(lasairTokenFlag, "LASAIR_TOKEN")
	if lasairToken == "" {
		return fmt.Errorf("a Lasair token is required (--lasair-token or $LASAIR_TOKEN)")
	}
	broker := newLasairClient(lasairToken)

	var uploader *panoptes.Client
	if !dryRunFlag {
		token := flagOrEnv(panoptesToken, "PANOPTES_TOKEN")
		if token == "" {
			return fmt.Errorf("a Panoptes token is required (--panoptes-token or $PANOPTES_TOKEN)")
		}
		if projectFlag == "" {
			return fmt.Errorf("--project is required unless --dry-run is set")
		}
		uploader = newPanoptesClient(token)
	}

	renderers, err := resolveRenderers(broker)
	if err != nil {
		return err
	}

	gen := subject.NewGenerator(broker, broker, objectIDs, subject.WithRenderers(renderers...))

	log.Info().
		Str("batchId", gen.BatchID()).
		Int("objects", len(objectIDs)).
		Bool("dryRun", dryRunFlag).
		Msg("Starting subject upload")

	return runUploadLoop(cmd.Context(), gen, uploader)
}

// runUploadLoop drains the generator, uploading each bundle. Per-detection
// failures are logged and skipped so one bad cutout does not stop the batch.
func runUploadLoop(ctx context.Context, gen *subject.Generator, uploader *panoptes.Client) error {
	uploaded, failed := 0, 0

	for {
		if limitFlag > 0 && uploaded >= limitFlag {
			log.Info().Int("limit", limitFlag).Msg("Upload limit reached")
			break
		}

		bundle, err := gen.Next(ctx)
		if errors.Is(err, subject.ErrDone) {
			break
		}
		if err != nil {
			failed++
			log.Error().Err(err).Msg("Detection failed")
			if !continueOnErrors {
				return err
			}
			continue
		}

		if uploader == nil {
			log.Info().
				Str("objectId", bundle.ObjectID).
				Int64("diaSourceId", bundle.DiaSourceID).
				Int("locations", len(bundle.Media)).
				Msg("Rendered subject (dry run)")
			uploaded++
			continue
		}

		subjectID, err := uploader.SaveWithRetry(ctx, panoptes.Subject{
			ProjectID: projectFlag,
			Locations: bundle.Media,
			Metadata:  bundle.Metadata,
		})
		if err != nil {
			failed++
			log.Error().Err(err).
				Str("objectId", bundle.ObjectID).
				Int64("diaSourceId", bundle.DiaSourceID).
				Msg("Subject upload failed")
			if !continueOnErrors {
				return err
			}
			continue
		}
		uploaded++
		log.Info().
			Str("subjectId", subjectID).
			Str("objectId", bundle.ObjectID).
			Int64("diaSourceId", bundle.DiaSourceID).
			Msg("Subject uploaded")
	}

	log.Info().Int("uploaded", uploaded).Int("failed", failed).Msg("Batch complete")
	if failed > 0 && uploaded == 0 {
		return fmt.Errorf("all %d detections failed", failed)
	}
	return nil
}

// resolveObjectIDs merges the --objects list with the --objects-file contents.
func resolveObjectIDs() ([]string, error) {
	var ids []string

	if objectsFlag != "" {
		for _, id := range strings.Split(objectsFlag, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	if objectsFileFlag != "" {
		f, err := os.Open(objectsFileFlag)
		if err != nil {
			return nil, fmt.Errorf("open objects file: %w", err)
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ids = append(ids, line)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read objects file: %w", err)
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no object IDs supplied (use --objects or --objects-file)")
	}
	return ids, nil
}

// resolveRenderers builds the renderer list from --renderers.
func resolveRenderers(fetcher render.CutoutFetcher) ([]render.Renderer, error) {
	if len(renderersFlag) == 0 {
		return []render.Renderer{
			render.NewScienceRenderer(fetcher),
			render.NewTemplateRenderer(fetcher),
			render.NewDifferenceRenderer(fetcher),
		}, nil
	}

	var renderers []render.Renderer
	for _, name := range renderersFlag {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "science":
			renderers = append(renderers, render.NewScienceRenderer(fetcher))
		case "template":
			renderers = append(renderers, render.NewTemplateRenderer(fetcher))
		case "difference":
			renderers = append(renderers, render.NewDifferenceRenderer(fetcher))
		case "triplet":
			renderers = append(renderers, render.NewTripletRenderer(fetcher))
		case "lightcurve":
			renderers = append(renderers, render.NewLightCurveRenderer())
		default:
			return nil, fmt.Errorf("unknown renderer %q", name)
		}
	}
	return renderers, nil
}

func newLasairClient(token string) *lasair.Client {
	if lasairURLFlag != "" {
		return lasair.NewClientWithBaseURL(token, lasairURLFlag)
	}
	return lasair.NewClient(token)
}

func newPanoptesClient(token string) *panoptes.Client {
	if panoptesURLFlag != "" {
		return panoptes.NewClientWithBaseURL(token, panoptesURLFlag)
	}
	return panoptes.NewClient(token)
}

func flagOrEnv(flagValue, envName string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envName)
}
