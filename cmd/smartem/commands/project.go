package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/errors"
	"github.com/d-j-hatton/python-smartem/extract"
	"github.com/d-j-hatton/python-smartem/logger"
)

// ProjectCmd groups the project commands
var ProjectCmd = &cobra.Command{
	Use:   "project",
	Short: "List, inspect, update and delete projects",
	Long: `project — Manage acquisition projects

Examples:
  smartem project ls
  smartem project show session1
  smartem project update session1 --acquisition /dls/m02/data/session1
  smartem project delete session1 --yes`,
}

var projectLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectLs,
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project>",
	Short: "Show a project, its atlas and hierarchy sizes",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectShow,
}

var projectUpdateCmd = &cobra.Command{
	Use:   "update <project>",
	Short: "Re-point the acquisition or processing directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectUpdate,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <project>",
	Short: "Delete a project with its atlas, hierarchy, particles and metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var (
	acquisitionFlag string
	processingFlag  string
	yesFlag         bool
)

func init() {
	ProjectCmd.AddCommand(projectLsCmd)
	ProjectCmd.AddCommand(projectShowCmd)
	ProjectCmd.AddCommand(projectUpdateCmd)
	ProjectCmd.AddCommand(projectDeleteCmd)

	projectUpdateCmd.Flags().StringVar(&acquisitionFlag, "acquisition", "", "New acquisition (EPU) directory")
	projectUpdateCmd.Flags().StringVar(&processingFlag, "processing", "", "New processing directory")
	projectDeleteCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Delete without asking")
}

func runProjectLs(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	projects, err := s.api.GetProjects(cmd.Context())
	if err != nil {
		return err
	}
	if shouldOutputJSON(cmd) {
		return outputJSON(cmd, projects)
	}
	if len(projects) == 0 {
		pterm.Info.Println("No projects")
		return nil
	}
	for _, p := range projects {
		pterm.Println(p)
	}
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	ctx := logger.WithProject(cmd.Context(), args[0])
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	p, ok, err := s.api.GetProject(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return errors.WithHint(errors.NewNotFoundError("project %q", args[0]), "list projects with: smartem project ls")
	}

	scope := extract.Scope{Project: p.ProjectName}
	gridSquares, err := s.api.GetGridSquares(ctx, scope)
	if err != nil {
		return err
	}
	foilHoles, err := s.api.GetFoilHoles(ctx, scope)
	if err != nil {
		return err
	}
	exposures, err := s.api.GetExposures(ctx, scope)
	if err != nil {
		return err
	}

	atlasID := "-"
	if p.AtlasID.Valid {
		atlasID = fmt.Sprintf("%d", p.AtlasID.Int64)
	}
	data := pterm.TableData{
		{"Field", "Value"},
		{"Project", p.ProjectName},
		{"Acquisition directory", p.AcquisitionDirectory},
		{"Processing directory", p.ProcessingDirectory},
		{"Atlas", atlasID},
		{"Grid squares", fmt.Sprintf("%d", len(gridSquares))},
		{"Foil holes", fmt.Sprintf("%d", len(foilHoles))},
		{"Exposures", fmt.Sprintf("%d", len(exposures))},
	}
	if atlas, ok, err := s.api.GetAtlasFromProject(ctx, p.ProjectName); err != nil {
		return err
	} else if ok {
		data = append(data, []string{"Atlas thumbnail", atlas.Thumbnail})
	}
	return renderTable(cmd, data)
}

func runProjectUpdate(cmd *cobra.Command, args []string) error {
	ctx := logger.WithProject(cmd.Context(), args[0])
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.api.UpdateProject(ctx, args[0], acquisitionFlag, processingFlag); err != nil {
		if errors.IsInvalidRequestError(err) {
			return errors.WithHint(err, "pass --acquisition and/or --processing")
		}
		return err
	}
	pterm.Success.Printf("Updated project %s\n", args[0])
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	if !yesFlag {
		ok, err := pterm.DefaultInteractiveConfirm.
			WithDefaultText(fmt.Sprintf("Delete project %s and all of its data?", args[0])).
			Show()
		if err != nil {
			return err
		}
		if !ok {
			pterm.Info.Println("Nothing deleted")
			return nil
		}
	}

	ctx := logger.WithProject(cmd.Context(), args[0])
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.api.DeleteProject(ctx, args[0]); err != nil {
		return err
	}
	pterm.Success.Printf("Deleted project %s\n", args[0])
	return nil
}
